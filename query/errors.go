package query

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrNotFound         = errors.New("consulate: not found")
	ErrAlreadyExists    = errors.New("consulate: already exists")
	ErrTransport        = errors.New("consulate: transport failure")
	ErrDecoding         = errors.New("consulate: decoding failure")
	ErrUnknownCursor    = errors.New("consulate: unknown cursor")
	ErrUnexpectedStatus = errors.New("consulate: unexpected status")
	ErrInvalidPolicy    = errors.New("consulate: invalid resolution policy")
)

// NotFoundError reports an absent target under a policy that does not wait,
// or a wait whose deadline passed before the target appeared (Expired).
//
// Resume is only meaningful when Expired is set. It is the cursor the wait
// was resolving, anchored to the last observed snapshot, so retrying with it
// returns entries that arrived after the deadline instead of skipping them.
type NotFoundError struct {
	Key     string
	Expired bool
	Resume  Cursor
}

func (e *NotFoundError) Error() string {
	if e.Expired {
		return fmt.Sprintf("consulate: %s not found before wait deadline", e.Key)
	}
	return fmt.Sprintf("consulate: %s not found", e.Key)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AlreadyExistsError reports a present target under a policy that rejects it.
type AlreadyExistsError struct {
	Key string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("consulate: %s already exists", e.Key)
}

// Is matches ErrAlreadyExists.
func (e *AlreadyExistsError) Is(target error) bool { return target == ErrAlreadyExists }

// TransportError wraps a request that produced no response.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("consulate: %s %s: transport failure: %v", e.Method, e.Path, e.Err)
}

// Unwrap exposes the transport cause.
func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DecodingError reports a response body or payload that could not be decoded.
type DecodingError struct {
	Key string
	Err error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("consulate: decode %s: %v", e.Key, e.Err)
}

// Unwrap exposes the decoder error.
func (e *DecodingError) Unwrap() error { return e.Err }

// Is matches ErrDecoding.
func (e *DecodingError) Is(target error) bool { return target == ErrDecoding }

// UnknownCursorError reports an At cursor whose identifier is not part of
// the snapshot it was resolved against.
type UnknownCursorError struct {
	ID string
}

func (e *UnknownCursorError) Error() string {
	return fmt.Sprintf("consulate: unknown cursor %q", e.ID)
}

// Is matches ErrUnknownCursor.
func (e *UnknownCursorError) Is(target error) bool { return target == ErrUnknownCursor }

// StatusError reports an HTTP status the protocol has no rule for.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	detail := strings.TrimSpace(string(e.Body))
	if len(detail) > 256 {
		detail = detail[:256] + "..."
	}
	if detail == "" {
		return fmt.Sprintf("consulate: %s %s: unexpected status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("consulate: %s %s: unexpected status %d: %s", e.Method, e.Path, e.Status, detail)
}

// Is matches ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }
