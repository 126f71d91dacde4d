package query

import (
	"context"
	"time"
)

// Result is what GetOne returns: the entry, its position, and the snapshot
// it was found in.
type Result[T any] struct {
	Entry    T
	Position int
	Snapshot Snapshot[T]
}

// GetOne resolves cursor against src and applies policy. key names the
// lookup in errors.
//
// When the target is absent and policy waits, GetOne long-polls src until
// the target appears or timeout (clamped to the engine ceiling) passes. On
// expiry it fails with a *NotFoundError whose Expired field is set and whose
// Resume cursor continues the lookup. A resource that reports no index
// cannot be waited on and fails with a plain *NotFoundError. A Next cursor
// is anchored to the last observed entry before waiting so the entry
// returned is the first one to arrive after the call started.
func GetOne[T Identified](ctx context.Context, src *Source[T], key string, cursor Cursor, policy Policy, timeout time.Duration) (Result[T], error) {
	if err := policy.Validate(false); err != nil {
		return Result[T]{}, err
	}
	deadline := src.Engine.Deadline(timeout)
	snap, err := src.Poll(ctx)
	if err != nil {
		return Result[T]{}, err
	}
	for {
		pos, ok, err := Resolve(cursor, snap.Entries)
		if err != nil {
			return Result[T]{}, err
		}
		if ok {
			if policy.Found == FoundReject {
				return Result[T]{}, &AlreadyExistsError{Key: key}
			}
			return Result[T]{Entry: snap.Entries[pos], Position: pos, Snapshot: snap}, nil
		}
		if policy.NotFound == NotFoundReject {
			return Result[T]{}, &NotFoundError{Key: key}
		}
		if snap.Index == 0 {
			src.Engine.logDebug("query.resolve.no_index", "key", key, "path", src.Path)
			return Result[T]{}, &NotFoundError{Key: key}
		}
		cursor = anchor(cursor, snap.Entries)
		src.Engine.logDebug("query.resolve.wait", "key", key, "cursor", cursor.String(), "index", snap.Index)
		next, expired, err := src.WaitUntil(ctx, snap.Index, deadline)
		if err != nil {
			return Result[T]{}, err
		}
		if expired {
			return Result[T]{}, &NotFoundError{Key: key, Expired: true, Resume: cursor}
		}
		snap = next
	}
}

// GetAll reads the whole list at src and applies policy, where an empty list
// is "absent".
//
// FoundWait waits for the next change and returns the list as it is then.
// When a wait expires GetAll returns the last snapshot it saw with a nil
// error, so callers compare Index to detect that nothing changed. A resource
// that reports no index cannot be waited on and is returned as read.
func GetAll[T any](ctx context.Context, src *Source[T], key string, policy Policy, timeout time.Duration) (Snapshot[T], error) {
	if err := policy.Validate(true); err != nil {
		return Snapshot[T]{}, err
	}
	deadline := src.Engine.Deadline(timeout)
	snap, err := src.Poll(ctx)
	if err != nil {
		return Snapshot[T]{}, err
	}
	changed := false
	for {
		if !snap.Empty() {
			switch policy.Found {
			case FoundReject:
				return Snapshot[T]{}, &AlreadyExistsError{Key: key}
			case FoundReturn:
				return snap, nil
			case FoundWait:
				if changed {
					return snap, nil
				}
			}
		} else if policy.NotFound == NotFoundReject {
			return Snapshot[T]{}, &NotFoundError{Key: key}
		}
		if snap.Index == 0 {
			src.Engine.logDebug("query.resolve.no_index", "key", key, "path", src.Path)
			return snap, nil
		}
		src.Engine.logDebug("query.resolve.wait", "key", key, "entries", snap.Len(), "index", snap.Index)
		next, expired, err := src.WaitUntil(ctx, snap.Index, deadline)
		if err != nil {
			return Snapshot[T]{}, err
		}
		if expired {
			return next, nil
		}
		changed = true
		snap = next
	}
}
