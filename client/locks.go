package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/internal/clock"
	"pkt.systems/consulate/query"
)

// ErrLockNotAcquired is returned by Locks.Lock when the wait deadline passes
// while another session still holds the key.
var ErrLockNotAcquired = errors.New("consulate: lock not acquired")

const (
	// DefaultLockSessionTTL is the TTL of sessions created by Locks.Lock.
	DefaultLockSessionTTL = 15 * time.Second
	// DefaultLockRetryInterval is the pause between attempts when the key is
	// free but the agent still refuses the acquire (lock delay).
	DefaultLockRetryInterval = time.Second
)

// Locks implements mutual exclusion on KV keys through sessions.
type Locks struct {
	c *Client
}

// LockOptions configure Locks.Lock.
type LockOptions struct {
	// Session is an existing session to lock with. When empty a session is
	// created with SessionTTL and destroyed by Unlock.
	Session    string
	SessionTTL time.Duration
	// Holder is stored as the key's value. Defaults to a fresh xid.
	Holder string
	// Timeout bounds the wait; zero or larger than the wait ceiling means the
	// ceiling.
	Timeout       time.Duration
	RetryInterval time.Duration
	Options       query.Options
}

// Acquire tries once to take key for session. false means another session
// holds it or the lock delay has not passed.
func (l *Locks) Acquire(ctx context.Context, key, session string, value []byte, opts query.Options) (bool, error) {
	if err := api.ValidateID("session", session); err != nil {
		return false, err
	}
	return l.c.kv.Put(ctx, key, value, PutOptions{Acquire: session, Options: opts})
}

// Release gives up key if session holds it.
func (l *Locks) Release(ctx context.Context, key, session string, value []byte, opts query.Options) (bool, error) {
	if err := api.ValidateID("session", session); err != nil {
		return false, err
	}
	return l.c.kv.Put(ctx, key, value, PutOptions{Release: session, Options: opts})
}

// Holder reads key and reports the session holding it ("" when free).
func (l *Locks) Holder(ctx context.Context, key string, opts query.Options) (string, query.Meta, error) {
	key, err := normalizeKey(key, false)
	if err != nil {
		return "", query.Meta{}, err
	}
	snap, err := l.c.kv.source(key, l.c.params(opts)).Poll(ctx)
	if err != nil {
		return "", query.Meta{}, err
	}
	if snap.Empty() {
		return "", snap.Meta, nil
	}
	return snap.Entries[0].Session, snap.Meta, nil
}

// Lock takes key, waiting on blocking queries while another session holds
// it. The returned Lock must be released with Unlock.
func (l *Locks) Lock(ctx context.Context, key string, opts LockOptions) (*Lock, error) {
	key, err := normalizeKey(key, false)
	if err != nil {
		return nil, err
	}
	holder := opts.Holder
	if holder == "" {
		holder = xid.New().String()
	}
	retry := opts.RetryInterval
	if retry <= 0 {
		retry = DefaultLockRetryInterval
	}
	deadline := l.c.engine.Deadline(opts.Timeout)

	lock := &Lock{locks: l, key: key, session: opts.Session, holder: holder, opts: opts.Options}
	if lock.session == "" {
		ttl := opts.SessionTTL
		if ttl <= 0 {
			ttl = DefaultLockSessionTTL
		}
		id, err := l.c.sessions.Create(ctx, api.SessionRequest{
			Name:     "consulate lock " + key,
			TTL:      ttl.String(),
			Behavior: api.SessionBehaviorRelease,
		}, opts.Options)
		if err != nil {
			return nil, err
		}
		lock.session = id
		lock.ownsSession = true
	}
	fail := func(err error) (*Lock, error) {
		if lock.ownsSession {
			if derr := l.c.sessions.Destroy(context.WithoutCancel(ctx), lock.session, opts.Options); derr != nil {
				err = errors.Join(err, derr)
			}
		}
		return nil, err
	}

	src := l.c.kv.source(key, l.c.params(opts.Options))
	for {
		ok, err := l.Acquire(ctx, key, lock.session, []byte(holder), opts.Options)
		if err != nil {
			return fail(err)
		}
		if ok {
			l.c.logInfoCtx(ctx, "client.lock.acquired", "key", key, "session", lock.session, "holder", holder)
			return lock, nil
		}
		snap, err := src.Poll(ctx)
		if err != nil {
			return fail(err)
		}
		if !snap.Empty() && snap.Entries[0].Locked() && snap.Index != 0 {
			l.c.logDebugCtx(ctx, "client.lock.wait", "key", key, "held_by", snap.Entries[0].Session, "index", snap.Index)
			_, expired, err := src.WaitUntil(ctx, snap.Index, deadline)
			if err != nil {
				return fail(err)
			}
			if expired {
				return fail(fmt.Errorf("%w: %s", ErrLockNotAcquired, key))
			}
			continue
		}
		left := clock.Remaining(l.c.clock, deadline)
		if left <= 0 {
			return fail(fmt.Errorf("%w: %s", ErrLockNotAcquired, key))
		}
		pause := retry
		if pause > left {
			pause = left
		}
		l.c.logDebugCtx(ctx, "client.lock.retry", "key", key, "pause", pause)
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		case <-l.c.clock.After(pause):
		}
	}
}

// Lock is a held lock.
type Lock struct {
	locks       *Locks
	key         string
	session     string
	holder      string
	ownsSession bool
	opts        query.Options

	mu       sync.Mutex
	released bool
}

// Key returns the locked key.
func (l *Lock) Key() string { return l.key }

// Session returns the session holding the lock.
func (l *Lock) Session() string { return l.session }

// Holder returns the value stored while the lock is held.
func (l *Lock) Holder() string { return l.holder }

// Unlock releases the key and destroys the session if Lock created it.
// Calling Unlock more than once is a no-op.
func (l *Lock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return nil
	}
	var errs []error
	if _, err := l.locks.Release(ctx, l.key, l.session, nil, l.opts); err != nil {
		errs = append(errs, err)
	}
	if l.ownsSession {
		if err := l.locks.c.sessions.Destroy(ctx, l.session, l.opts); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	l.released = true
	l.locks.c.logInfoCtx(ctx, "client.lock.released", "key", l.key, "session", l.session)
	return nil
}
