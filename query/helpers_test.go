package query

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"pkt.systems/consulate/internal/clock"
	"pkt.systems/consulate/transport"
)

var testEpoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// step is one scripted server reply. advance moves the manual clock before
// the reply is returned, simulating time spent inside the long poll.
type step struct {
	status  int
	index   uint64
	body    string
	err     error
	advance time.Duration
}

type scriptedTransport struct {
	t     testing.TB
	clock *clock.Manual

	mu    sync.Mutex
	steps []step
	reqs  []*transport.Request
}

func (s *scriptedTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		s.t.Errorf("unexpected request %s?%s", req.Path, req.Params.Encode())
		return nil, errors.New("script exhausted")
	}
	st := s.steps[0]
	s.steps = s.steps[1:]
	s.mu.Unlock()

	if st.advance > 0 && s.clock != nil {
		s.clock.Advance(st.advance)
	}
	if st.err != nil {
		return nil, st.err
	}
	status := st.status
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	if st.index > 0 {
		// Deliberately non-canonical: the index header must match in any case.
		header["x-consul-index"] = []string{strconv.FormatUint(st.index, 10)}
	}
	return &transport.Response{Status: status, Header: header, Body: []byte(st.body)}, nil
}

func (s *scriptedTransport) push(steps ...step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, steps...)
}

func (s *scriptedTransport) requests() []*transport.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*transport.Request, len(s.reqs))
	copy(out, s.reqs)
	return out
}

func (s *scriptedTransport) param(t testing.TB, i int, key string) string {
	t.Helper()
	reqs := s.requests()
	if i >= len(reqs) {
		t.Fatalf("request %d not issued (have %d)", i, len(reqs))
	}
	v, _ := reqs[i].Params.Get(key)
	return v
}

func newScriptedEngine(t testing.TB, opts []Option, steps ...step) (*Engine, *scriptedTransport, *clock.Manual) {
	t.Helper()
	mc := clock.NewManual(testEpoch)
	st := &scriptedTransport{t: t, clock: mc, steps: steps}
	all := append([]Option{WithClock(mc), WithSpuriousBackoff(0, 0)}, opts...)
	return NewEngine(st, all...), st, mc
}

type item struct {
	ID    string `json:"ID"`
	Value string `json:"Value,omitempty"`
}

func (i item) CursorID() string { return i.ID }

func items(ids ...string) []item {
	out := make([]item, 0, len(ids))
	for _, id := range ids {
		out = append(out, item{ID: id})
	}
	return out
}

func body(t testing.TB, ids ...string) string {
	t.Helper()
	raw, err := json.Marshal(items(ids...))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(raw)
}

func itemSource(e *Engine, mode IndexMode) *Source[item] {
	return &Source[item]{Engine: e, Path: "/v1/event/list", IndexMode: mode}
}

func ids(entries []item) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
