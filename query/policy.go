package query

import (
	"fmt"
	"strings"
)

// NotFoundAction is applied when the target is absent.
type NotFoundAction uint8

// Not-found actions.
const (
	NotFoundReject NotFoundAction = iota
	NotFoundWait
)

func (a NotFoundAction) String() string {
	switch a {
	case NotFoundReject:
		return "reject"
	case NotFoundWait:
		return "wait"
	default:
		return fmt.Sprintf("NotFoundAction(%d)", uint8(a))
	}
}

// ParseNotFoundAction accepts "reject" and "wait".
func ParseNotFoundAction(s string) (NotFoundAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject":
		return NotFoundReject, nil
	case "wait":
		return NotFoundWait, nil
	default:
		return 0, fmt.Errorf("%w: not-found action %q (want reject or wait)", ErrInvalidPolicy, s)
	}
}

// FoundAction is applied when the target is present.
type FoundAction uint8

// Found actions. FoundWait is only meaningful for aggregate lookups.
const (
	FoundReject FoundAction = iota
	FoundReturn
	FoundWait
)

func (a FoundAction) String() string {
	switch a {
	case FoundReject:
		return "reject"
	case FoundReturn:
		return "return"
	case FoundWait:
		return "wait"
	default:
		return fmt.Sprintf("FoundAction(%d)", uint8(a))
	}
}

// ParseFoundAction accepts "reject", "return" and "wait".
func ParseFoundAction(s string) (FoundAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reject":
		return FoundReject, nil
	case "return":
		return FoundReturn, nil
	case "wait":
		return FoundWait, nil
	default:
		return 0, fmt.Errorf("%w: found action %q (want reject, return or wait)", ErrInvalidPolicy, s)
	}
}

// Policy is the caller's declared behaviour for an absent and a present
// target. The zero value rejects both.
//
// {NotFound: NotFoundWait, Found: FoundReject} is representable but
// self-contradictory: it waits for the target only to reject it. Callers
// using it get ErrAlreadyExists once the target shows up.
type Policy struct {
	NotFound NotFoundAction
	Found    FoundAction
}

// ParsePolicy builds a Policy from the symbolic action names.
func ParsePolicy(notFound, found string) (Policy, error) {
	nf, err := ParseNotFoundAction(notFound)
	if err != nil {
		return Policy{}, err
	}
	f, err := ParseFoundAction(found)
	if err != nil {
		return Policy{}, err
	}
	return Policy{NotFound: nf, Found: f}, nil
}

func (p Policy) String() string {
	return "not_found=" + p.NotFound.String() + ",found=" + p.Found.String()
}

// Validate checks that both actions are known. aggregate permits FoundWait.
func (p Policy) Validate(aggregate bool) error {
	if p.NotFound > NotFoundWait {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, p.NotFound)
	}
	if p.Found > FoundWait {
		return fmt.Errorf("%w: %s", ErrInvalidPolicy, p.Found)
	}
	if p.Found == FoundWait && !aggregate {
		return fmt.Errorf("%w: found=wait is only valid when reading a whole list", ErrInvalidPolicy)
	}
	return nil
}
