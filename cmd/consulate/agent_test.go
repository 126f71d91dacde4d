package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"pkt.systems/consulate/api"
	"pkt.systems/pslog"
)

// testAgent is a minimal agent. KV and session reads answer immediately with
// the current index; the event list honours index and wait.
type testAgent struct {
	srv *httptest.Server

	mu       sync.Mutex
	index    uint64
	changed  chan struct{}
	kv       map[string]api.KVPair
	events   []api.UserEvent
	sessions map[string]api.SessionEntry
	tokens   []string
	// afterEventWait runs once, under mu, when a blocking event read times
	// out. The reply still carries the state from before it ran.
	afterEventWait func()
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	a := &testAgent{
		index:    1,
		changed:  make(chan struct{}),
		kv:       make(map[string]api.KVPair),
		sessions: make(map[string]api.SessionEntry),
	}
	a.srv = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.srv.Close)
	return a
}

func (a *testAgent) URL() string { return a.srv.URL }

func (a *testAgent) seenTokens() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.tokens...)
}

func (a *testAgent) fire(name, payload string) api.UserEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fireLocked(name, []byte(payload))
}

func (a *testAgent) fireLocked(name string, payload []byte) api.UserEvent {
	a.index++
	ev := api.UserEvent{
		ID:      uuid.NewString(),
		Name:    name,
		Payload: payload,
		Version: 1,
		LTime:   uint64(len(a.events) + 1),
	}
	a.events = append(a.events, ev)
	close(a.changed)
	a.changed = make(chan struct{})
	return ev
}

func (a *testAgent) eventIndexLocked() uint64 {
	return uint64(len(a.events) + 1)
}

// waitForEvents blocks an event list read carrying index until the list
// changes or wait passes. It reports whether the wait timed out.
func (a *testAgent) waitForEvents(r *http.Request) bool {
	idx, err := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	if err != nil {
		return false
	}
	wait := 5 * time.Minute
	if d, err := time.ParseDuration(r.URL.Query().Get("wait")); err == nil {
		wait = d
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		a.mu.Lock()
		cur := a.eventIndexLocked()
		ch := a.changed
		a.mu.Unlock()
		if cur != idx {
			return false
		}
		select {
		case <-ch:
		case <-timer.C:
			return true
		case <-r.Context().Done():
			return false
		}
	}
}

func (a *testAgent) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	timedOut := false
	if r.URL.Path == "/v1/event/list" {
		timedOut = a.waitForEvents(r)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = append(a.tokens, r.Header.Get("X-Consul-Token"))
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/kv/"):
		a.serveKV(w, r, strings.TrimPrefix(path, "/v1/kv/"), body)
	case strings.HasPrefix(path, "/v1/event/fire/") && r.Method == http.MethodPut:
		writeJSON(w, a.fireLocked(strings.TrimPrefix(path, "/v1/event/fire/"), body))
	case path == "/v1/event/list":
		name := r.URL.Query().Get("name")
		out := []api.UserEvent{}
		for _, ev := range a.events {
			if name == "" || ev.Name == name {
				out = append(out, ev)
			}
		}
		w.Header().Set("X-Consul-Index", strconv.FormatUint(a.eventIndexLocked(), 10))
		if hook := a.afterEventWait; timedOut && hook != nil {
			a.afterEventWait = nil
			hook()
		}
		writeJSON(w, out)
	case path == "/v1/session/create":
		var req api.SessionRequest
		_ = json.Unmarshal(body, &req)
		a.index++
		id := uuid.NewString()
		a.sessions[id] = api.SessionEntry{ID: id, Name: req.Name, Node: "node-1", Behavior: req.Behavior, TTL: req.TTL, CreateIndex: a.index, ModifyIndex: a.index}
		writeJSON(w, api.SessionCreated{ID: id})
	case strings.HasPrefix(path, "/v1/session/destroy/"):
		id := strings.TrimPrefix(path, "/v1/session/destroy/")
		delete(a.sessions, id)
		for k, p := range a.kv {
			if p.Session == id {
				p.Session = ""
				a.kv[k] = p
			}
		}
		writeJSON(w, true)
	case path == "/v1/session/list":
		out := []api.SessionEntry{}
		for _, s := range a.sessions {
			out = append(out, s)
		}
		w.Header().Set("X-Consul-Index", strconv.FormatUint(a.index, 10))
		writeJSON(w, out)
	case path == "/v1/status/leader":
		writeJSON(w, "10.0.0.1:8300")
	case path == "/v1/status/peers":
		writeJSON(w, []string{"10.0.0.1:8300", "10.0.0.2:8300"})
	default:
		http.NotFound(w, r)
	}
}

func (a *testAgent) serveKV(w http.ResponseWriter, r *http.Request, key string, body []byte) {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("X-Consul-Index", strconv.FormatUint(a.index, 10))
		var out []api.KVPair
		_, recurse := q["recurse"]
		_, keys := q["keys"]
		if recurse || keys {
			for k, p := range a.kv {
				if strings.HasPrefix(k, key) {
					out = append(out, p)
				}
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		} else if p, ok := a.kv[key]; ok {
			out = append(out, p)
		}
		if len(out) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if keys {
			names := make([]string, 0, len(out))
			for _, p := range out {
				names = append(names, p.Key)
			}
			writeJSON(w, names)
			return
		}
		writeJSON(w, out)
	case http.MethodPut:
		existing, exists := a.kv[key]
		if raw := q.Get("cas"); raw != "" {
			cas, _ := strconv.ParseUint(raw, 10, 64)
			if (cas == 0 && exists) || (cas != 0 && existing.ModifyIndex != cas) {
				writeJSON(w, false)
				return
			}
		}
		session := existing.Session
		if acquire := q.Get("acquire"); acquire != "" {
			if session != "" && session != acquire {
				writeJSON(w, false)
				return
			}
			session = acquire
		}
		if release := q.Get("release"); release != "" {
			if session != release {
				writeJSON(w, false)
				return
			}
			session = ""
		}
		a.index++
		p := api.KVPair{Key: key, Value: bytes.Clone(body), ModifyIndex: a.index, CreateIndex: a.index, Session: session}
		if exists {
			p.CreateIndex = existing.CreateIndex
		}
		if raw := q.Get("flags"); raw != "" {
			p.Flags, _ = strconv.ParseUint(raw, 10, 64)
		}
		a.kv[key] = p
		writeJSON(w, true)
	case http.MethodDelete:
		a.index++
		if _, recurse := q["recurse"]; recurse {
			for k := range a.kv {
				if strings.HasPrefix(k, key) {
					delete(a.kv, k)
				}
			}
		} else {
			delete(a.kv, key)
		}
		writeJSON(w, true)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func executeRootCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeRootCommandWithInput(t, "", args...)
}

func executeRootCommandWithInput(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	err := executeRootCommandContext(context.Background(), strings.NewReader(stdin), &stdout, &stderr, args...)
	return stdout.String(), stderr.String(), err
}

func executeRootCommandContext(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	cmd := newRootCommand(pslog.NewStructured(context.Background(), io.Discard))
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// lockedBuffer is written by a running command while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolateEnv keeps the developer's config and agent settings out of a test.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONSULATE_CONFIG_DIR", t.TempDir())
	for _, env := range []string{"CONSUL_HTTP_ADDR", "CONSUL_HTTP_TOKEN", "CONSUL_HTTP_TOKEN_FILE", "CONSUL_DATACENTER", "CONSUL_NAMESPACE", "CONSUL_PARTITION", "CONSULATE_OUTPUT"} {
		t.Setenv(env, "")
	}
}
