package query

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"pkt.systems/consulate/internal/clock"
	"pkt.systems/consulate/internal/svcfields"
	"pkt.systems/consulate/transport"
	"pkt.systems/pslog"
)

const (
	// DefaultWaitCeiling bounds every blocking query when no smaller timeout
	// is requested. It matches the agent's own maximum wait.
	DefaultWaitCeiling = 5 * time.Minute
	// DefaultSpuriousBackoff is the pause before the second consecutive
	// re-issue after a wake without progress. The first re-issue is
	// immediate.
	DefaultSpuriousBackoff = 50 * time.Millisecond
	// DefaultSpuriousBackoffMax caps the re-issue pause.
	DefaultSpuriousBackoffMax = 2 * time.Second

	minWait = time.Millisecond
)

// IndexMode decides when a blocking query has observed a change.
type IndexMode uint8

const (
	// IndexMonotonic treats only a strictly larger index as a change. An
	// equal or smaller index is a spurious wake. This is the rule for KV,
	// catalog, health and session endpoints.
	IndexMonotonic IndexMode = iota
	// IndexOpaque treats any different non-zero index as a change. The event
	// list derives its index from event identifiers, so it is not ordered.
	IndexOpaque
)

func (m IndexMode) changed(last, got uint64) bool {
	if m == IndexOpaque {
		return got != 0 && got != last
	}
	return got > last
}

// Engine issues plain and blocking reads. It holds no per-watch state and is
// safe for concurrent use; concurrent waits each hold their own request.
type Engine struct {
	transport   transport.Transport
	clock       clock.Clock
	ceiling     time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	logger      pslog.Base
	metrics     *engineMetrics
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithWaitCeiling overrides the maximum duration of any single
// WaitForChange call. Non-positive values keep the default.
func WithWaitCeiling(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.ceiling = d
		}
	}
}

// WithSpuriousBackoff sets the exponential pause applied between
// consecutive spurious wakes. A zero base disables pausing.
func WithSpuriousBackoff(base, max time.Duration) Option {
	return func(e *Engine) {
		if base < 0 {
			base = 0
		}
		e.backoffBase = base
		if max > 0 {
			e.backoffMax = max
		}
	}
}

// WithLogger supplies a logger for engine diagnostics.
func WithLogger(logger pslog.Base) Option {
	return func(e *Engine) {
		e.logger = svcfields.Tag(logger, "query.engine")
	}
}

// NewEngine returns an engine reading through t.
func NewEngine(t transport.Transport, opts ...Option) *Engine {
	e := &Engine{
		transport:   t,
		clock:       clock.Real{},
		ceiling:     DefaultWaitCeiling,
		backoffBase: DefaultSpuriousBackoff,
		backoffMax:  DefaultSpuriousBackoffMax,
		logger:      pslog.NoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metrics = newEngineMetrics(e.logger)
	return e
}

// Ceiling returns the configured wait ceiling.
func (e *Engine) Ceiling() time.Duration { return e.ceiling }

// Deadline converts a caller timeout into an absolute deadline. Timeouts
// that are non-positive or above the ceiling are clamped to the ceiling.
func (e *Engine) Deadline(timeout time.Duration) time.Time {
	if timeout <= 0 || timeout > e.ceiling {
		timeout = e.ceiling
	}
	return e.clock.Now().Add(timeout)
}

// Poll performs one non-blocking read of path. 2xx and 404 responses are
// returned as pages; any other status is a *StatusError. index and wait
// parameters are stripped.
func (e *Engine) Poll(ctx context.Context, path string, params Params) (Page, error) {
	params = params.Without("index").Without("wait")
	page, err := e.get(ctx, path, params, false)
	if err != nil {
		return Page{}, err
	}
	e.logTrace("query.poll.complete", "path", path, "status", page.Status, "index", page.Index)
	return page, nil
}

// WaitForChange long-polls path until its index moves past lastIndex or
// timeout (clamped to the ceiling) elapses, and returns the resulting page.
// On expiry the last page seen is returned without error; compare its
// Index with lastIndex to tell the two apart. lastIndex 0 degenerates to
// Poll.
func (e *Engine) WaitForChange(ctx context.Context, path string, params Params, lastIndex uint64, timeout time.Duration) (Page, error) {
	page, _, err := e.wait(ctx, path, params, lastIndex, e.Deadline(timeout), IndexMonotonic)
	return page, err
}

// WaitUntil is WaitForChange against an absolute deadline. It also reports
// whether the deadline expired without a change, which lets callers share
// one deadline across several waits.
func (e *Engine) WaitUntil(ctx context.Context, path string, params Params, lastIndex uint64, deadline time.Time, mode IndexMode) (Page, bool, error) {
	return e.wait(ctx, path, params, lastIndex, deadline, mode)
}

func (e *Engine) wait(ctx context.Context, path string, params Params, lastIndex uint64, deadline time.Time, mode IndexMode) (Page, bool, error) {
	if lastIndex == 0 {
		page, err := e.Poll(ctx, path, params)
		return page, false, err
	}
	start := e.clock.Now()
	if limit := start.Add(e.ceiling); deadline.IsZero() || deadline.After(limit) {
		deadline = limit
	}
	index := strconv.FormatUint(lastIndex, 10)
	var (
		last     Page
		seen     bool
		spurious int
	)
	for {
		remaining := clock.Remaining(e.clock, deadline)
		if remaining <= 0 {
			if seen {
				e.metrics.recordWait(ctx, waitExpired)
				e.metrics.recordWaitDuration(ctx, waitExpired, e.clock.Now().Sub(start))
				e.logDebug("query.wait.expired", "path", path, "index", lastIndex, "spurious", spurious)
				return last, true, nil
			}
			// The first request always goes out so the caller sees current state.
			remaining = minWait
		}
		wait := e.capToContext(ctx, remaining)
		p := params.Set("index", index).Set("wait", formatWait(wait))
		page, err := e.get(ctx, path, p, true)
		if err != nil {
			e.metrics.recordWait(ctx, waitError)
			e.logDebug("query.wait.error", "path", path, "index", lastIndex, "error", err)
			return Page{}, false, err
		}
		seen, last = true, page
		if mode.changed(lastIndex, page.Index) {
			e.metrics.recordWait(ctx, waitChanged)
			e.metrics.recordWaitDuration(ctx, waitChanged, e.clock.Now().Sub(start))
			e.logDebug("query.wait.changed", "path", path, "from", lastIndex, "to", page.Index, "spurious", spurious)
			return page, false, nil
		}
		spurious++
		e.metrics.recordWait(ctx, waitSpurious)
		e.logTrace("query.wait.spurious", "path", path, "index", lastIndex, "observed", page.Index, "count", spurious)
		pause := e.backoff(spurious)
		if left := clock.Remaining(e.clock, deadline); pause > left {
			pause = left
		}
		if pause <= 0 {
			if err := ctx.Err(); err != nil {
				return Page{}, false, err
			}
			continue
		}
		select {
		case <-ctx.Done():
			return Page{}, false, ctx.Err()
		case <-e.clock.After(pause):
		}
	}
}

func (e *Engine) backoff(spurious int) time.Duration {
	if spurious < 2 || e.backoffBase <= 0 {
		return 0
	}
	d := e.backoffBase
	for i := 2; i < spurious; i++ {
		d *= 2
		if d >= e.backoffMax {
			return e.backoffMax
		}
	}
	if d > e.backoffMax {
		return e.backoffMax
	}
	return d
}

func (e *Engine) get(ctx context.Context, path string, params Params, blocking bool) (Page, error) {
	resp, err := e.transport.Do(ctx, &transport.Request{Method: http.MethodGet, Path: path, Params: params})
	if err != nil {
		e.metrics.recordPoll(ctx, blocking, 0)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, ctxErr
		}
		return Page{}, &TransportError{Method: http.MethodGet, Path: path, Err: err}
	}
	e.metrics.recordPoll(ctx, blocking, resp.Status)
	if (resp.Status < 200 || resp.Status > 299) && resp.Status != http.StatusNotFound {
		return Page{}, &StatusError{Method: http.MethodGet, Path: path, Status: resp.Status, Body: resp.Body}
	}
	return Page{Meta: ParseMeta(resp.Header), Status: resp.Status, Body: resp.Body}, nil
}

// capToContext shortens d to what is left of the context deadline, measured
// on the engine clock.
func (e *Engine) capToContext(ctx context.Context, d time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := clock.Remaining(e.clock, dl); left < d {
			d = left
		}
	}
	if d < minWait {
		d = minWait
	}
	return d
}

func formatWait(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}

func (e *Engine) logTrace(msg string, keyvals ...any) {
	if e.logger != nil {
		e.logger.Trace(msg, keyvals...)
	}
}

func (e *Engine) logDebug(msg string, keyvals ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, keyvals...)
	}
}
