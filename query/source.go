package query

import (
	"context"
	"time"
)

// Source binds an engine to one readable resource and its decoder.
type Source[T any] struct {
	Engine *Engine
	Path   string
	Params Params
	// Decode turns a response body into entries. Nil means DecodeJSON[T].
	Decode func([]byte) ([]T, error)
	// MissingIsEmpty maps a 404 to an empty snapshot. Single-key KV reads
	// set it; list endpoints never return 404.
	MissingIsEmpty bool
	IndexMode      IndexMode
}

// Poll performs one read and decodes it.
func (s *Source[T]) Poll(ctx context.Context) (Snapshot[T], error) {
	page, err := s.Engine.Poll(ctx, s.Path, s.Params)
	if err != nil {
		return Snapshot[T]{}, err
	}
	return s.snapshot(page)
}

// WaitForChange blocks until the resource moves past lastIndex or timeout
// elapses. On expiry the last snapshot read is returned without error.
func (s *Source[T]) WaitForChange(ctx context.Context, lastIndex uint64, timeout time.Duration) (Snapshot[T], error) {
	snap, _, err := s.WaitUntil(ctx, lastIndex, s.Engine.Deadline(timeout))
	return snap, err
}

// WaitUntil is WaitForChange against an absolute deadline and also reports
// whether the deadline expired without a change.
func (s *Source[T]) WaitUntil(ctx context.Context, lastIndex uint64, deadline time.Time) (Snapshot[T], bool, error) {
	page, expired, err := s.Engine.WaitUntil(ctx, s.Path, s.Params, lastIndex, deadline, s.IndexMode)
	if err != nil {
		return Snapshot[T]{}, false, err
	}
	snap, err := s.snapshot(page)
	if err != nil {
		return Snapshot[T]{}, false, err
	}
	return snap, expired, nil
}

func (s *Source[T]) snapshot(page Page) (Snapshot[T], error) {
	if page.Missing() {
		if s.MissingIsEmpty {
			return Snapshot[T]{Meta: page.Meta}, nil
		}
		return Snapshot[T]{}, &NotFoundError{Key: s.Path}
	}
	decode := s.Decode
	if decode == nil {
		decode = DecodeJSON[T]
	}
	entries, err := decode(page.Body)
	if err != nil {
		return Snapshot[T]{}, &DecodingError{Key: s.Path, Err: err}
	}
	return Snapshot[T]{Meta: page.Meta, Entries: entries}, nil
}
