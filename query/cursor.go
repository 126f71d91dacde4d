package query

import (
	"fmt"
	"strings"
)

// Cursor tokens accepted by ParseCursor.
const (
	TokenFirst = ":first"
	TokenLast  = ":last"
	TokenNext  = ":next"
)

type cursorKind uint8

const (
	cursorFirst cursorKind = iota
	cursorLast
	cursorNext
	cursorAt
)

// Cursor is a logical position in an ordered snapshot. The zero value is
// First.
type Cursor struct {
	kind cursorKind
	id   string
}

// Predefined cursors.
var (
	First = Cursor{kind: cursorFirst}
	Last  = Cursor{kind: cursorLast}
	Next  = Cursor{kind: cursorNext}
)

// At returns the cursor positioned right after the entry identified by id.
func At(id string) Cursor {
	return Cursor{kind: cursorAt, id: id}
}

// ParseCursor maps :first, :last and :next to their cursors and any other
// non-empty string to At.
func ParseCursor(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	switch token {
	case "":
		return Cursor{}, fmt.Errorf("consulate: empty cursor")
	case TokenFirst:
		return First, nil
	case TokenLast:
		return Last, nil
	case TokenNext:
		return Next, nil
	default:
		return At(token), nil
	}
}

// ID returns the identifier of an At cursor.
func (c Cursor) ID() (string, bool) {
	if c.kind != cursorAt {
		return "", false
	}
	return c.id, true
}

// IsNext reports whether c is Next.
func (c Cursor) IsNext() bool { return c.kind == cursorNext }

// String returns the token form of c.
func (c Cursor) String() string {
	switch c.kind {
	case cursorLast:
		return TokenLast
	case cursorNext:
		return TokenNext
	case cursorAt:
		return c.id
	default:
		return TokenFirst
	}
}

// Identified is implemented by entries that can anchor an At cursor.
type Identified interface {
	CursorID() string
}

// Position maps c to a zero-based index into entries. The index may be out
// of bounds: Next is always len(entries), Last on an empty list is 0.
func Position[T Identified](c Cursor, entries []T) (int, error) {
	switch c.kind {
	case cursorFirst:
		return 0, nil
	case cursorLast:
		if len(entries) == 0 {
			return 0, nil
		}
		return len(entries) - 1, nil
	case cursorNext:
		return len(entries), nil
	case cursorAt:
		for i, entry := range entries {
			if entry.CursorID() == c.id {
				return i + 1, nil
			}
		}
		return -1, &UnknownCursorError{ID: c.id}
	default:
		return -1, fmt.Errorf("consulate: invalid cursor kind %d", c.kind)
	}
}

// Resolve is Position plus an in-bounds check: ok reports whether an entry
// exists at pos.
func Resolve[T Identified](c Cursor, entries []T) (pos int, ok bool, err error) {
	pos, err = Position(c, entries)
	if err != nil {
		return pos, false, err
	}
	return pos, pos >= 0 && pos < len(entries), nil
}

// anchor converts Next into a cursor that keeps meaning "whatever arrives
// after what was observed" once the snapshot changes.
func anchor[T Identified](c Cursor, entries []T) Cursor {
	if c.kind != cursorNext {
		return c
	}
	if len(entries) == 0 {
		return First
	}
	return At(entries[len(entries)-1].CursorID())
}
