// Package correlation carries request correlation identifiers through
// contexts so transport logs and outgoing headers can be tied together.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Header is the HTTP header used to forward correlation identifiers.
const Header = "X-Correlation-Id"

// MaxIDLength bounds accepted identifiers.
const MaxIDLength = 128

type contextKey struct{}

// Generate returns a new time-ordered identifier (UUIDv7).
func Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// WithID returns ctx annotated with id. Invalid identifiers leave ctx unchanged.
func WithID(ctx context.Context, id string) context.Context {
	normalized, ok := Normalize(id)
	if !ok {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, normalized)
}

// ID returns the identifier carried by ctx, if any.
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

// Normalize trims and validates an identifier: printable ASCII, at most
// MaxIDLength characters.
func Normalize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxIDLength {
		return "", false
	}
	for _, r := range id {
		if r < 0x20 || r > 0x7e {
			return "", false
		}
	}
	return id, true
}
