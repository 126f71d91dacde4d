package client

import (
	"encoding/json"
	"hash/fnv"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// fakeAgent is an in-memory agent covering the KV, event, session and status
// endpoints, including blocking reads.
type fakeAgent struct {
	t   testing.TB
	srv *httptest.Server

	mu       sync.Mutex
	index    uint64
	changed  chan struct{}
	kv       map[string]*api.KVPair
	events   []api.UserEvent
	ltime    uint64
	sessions map[string]api.SessionEntry
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
}

func newFakeAgent(t testing.TB) *fakeAgent {
	t.Helper()
	a := &fakeAgent{
		t:        t,
		index:    1,
		changed:  make(chan struct{}),
		kv:       map[string]*api.KVPair{},
		sessions: map[string]api.SessionEntry{},
	}
	a.srv = httptest.NewServer(http.HandlerFunc(a.serve))
	t.Cleanup(a.srv.Close)
	return a
}

func newTestClient(t testing.TB, a *fakeAgent, opts ...Option) *Client {
	t.Helper()
	all := append([]Option{WithEngineOptions(query.WithSpuriousBackoff(0, 0))}, opts...)
	cli, err := New(Config{Address: a.srv.URL, Token: "test-token"}, all...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { cli.Close() })
	return cli
}

// bumpLocked advances the raft index and wakes blocked readers. Callers hold mu.
func (a *fakeAgent) bumpLocked() uint64 {
	a.index++
	close(a.changed)
	a.changed = make(chan struct{})
	return a.index
}

func (a *fakeAgent) recorded() []recordedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]recordedRequest(nil), a.requests...)
}

func (a *fakeAgent) lastRequest(t testing.TB, method, pathPrefix string) recordedRequest {
	t.Helper()
	reqs := a.recorded()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Method == method && strings.HasPrefix(reqs[i].Path, pathPrefix) {
			return reqs[i]
		}
	}
	t.Fatalf("no %s %s request recorded", method, pathPrefix)
	return recordedRequest{}
}

func (a *fakeAgent) put(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.putLocked(key, []byte(value), 0)
}

func (a *fakeAgent) putLocked(key string, value []byte, flags uint64) *api.KVPair {
	idx := a.bumpLocked()
	pair, ok := a.kv[key]
	if !ok {
		pair = &api.KVPair{Key: key, CreateIndex: idx}
		a.kv[key] = pair
	}
	pair.Value = append([]byte{}, value...)
	pair.Flags = flags
	pair.ModifyIndex = idx
	return pair
}

func (a *fakeAgent) fire(name, payload string) api.UserEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fireLocked(name, []byte(payload), url.Values{})
}

func (a *fakeAgent) fireLocked(name string, payload []byte, q url.Values) api.UserEvent {
	a.ltime++
	ev := api.UserEvent{
		ID:            uuid.NewString(),
		Name:          name,
		Payload:       payload,
		NodeFilter:    q.Get("node"),
		ServiceFilter: q.Get("service"),
		TagFilter:     q.Get("tag"),
		Version:       1,
		LTime:         a.ltime,
	}
	a.events = append(a.events, ev)
	a.bumpLocked()
	return ev
}

// eventIndexLocked mimics the agent: the list index is derived from the
// newest event ID, so it is not ordered.
func (a *fakeAgent) eventIndexLocked(name string) uint64 {
	var last string
	for _, ev := range a.events {
		if name == "" || ev.Name == name {
			last = ev.ID
		}
	}
	if last == "" {
		return 1
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(last))
	return h.Sum64()
}

func (a *fakeAgent) block(r *http.Request, current func() uint64) {
	raw := r.URL.Query().Get("index")
	if raw == "" {
		return
	}
	idx, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return
	}
	wait := 5 * time.Minute
	if w := r.URL.Query().Get("wait"); w != "" {
		if d, err := time.ParseDuration(w); err == nil {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		a.mu.Lock()
		cur := current()
		ch := a.changed
		a.mu.Unlock()
		if cur != idx {
			return
		}
		select {
		case <-ch:
		case <-timer.C:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (a *fakeAgent) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	a.mu.Lock()
	a.requests = append(a.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()})
	a.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/kv/"):
		a.serveKV(w, r, strings.TrimPrefix(path, "/v1/kv/"), body)
	case path == "/v1/event/list":
		a.serveEventList(w, r)
	case strings.HasPrefix(path, "/v1/event/fire/"):
		a.mu.Lock()
		ev := a.fireLocked(strings.TrimPrefix(path, "/v1/event/fire/"), body, r.URL.Query())
		a.mu.Unlock()
		writeJSON(w, 0, map[string]any{
			"ID": ev.ID, "Name": ev.Name, "Payload": api.EncodeValue(ev.Payload),
			"NodeFilter": ev.NodeFilter, "ServiceFilter": ev.ServiceFilter, "TagFilter": ev.TagFilter,
			"Version": ev.Version, "LTime": 0,
		})
	case strings.HasPrefix(path, "/v1/session/"):
		a.serveSession(w, r, strings.TrimPrefix(path, "/v1/session/"), body)
	case path == "/v1/status/leader":
		writeJSON(w, 0, "10.0.0.1:8300")
	case path == "/v1/status/peers":
		writeJSON(w, 0, []string{"10.0.0.1:8300", "10.0.0.2:8300"})
	default:
		http.Error(w, "unknown endpoint", http.StatusNotImplemented)
	}
}

func (a *fakeAgent) serveKV(w http.ResponseWriter, r *http.Request, key string, body []byte) {
	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		a.block(r, func() uint64 { return a.index })
		a.mu.Lock()
		defer a.mu.Unlock()
		var matches []api.KVPair
		for k, pair := range a.kv {
			if q.Has("recurse") || q.Has("keys") {
				if strings.HasPrefix(k, key) {
					matches = append(matches, *pair)
				}
			} else if k == key {
				matches = append(matches, *pair)
			}
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].Key < matches[j].Key })
		w.Header().Set("X-Consul-Index", strconv.FormatUint(a.index, 10))
		w.Header().Set("X-Consul-KnownLeader", "true")
		if len(matches) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if q.Has("keys") {
			sep := q.Get("separator")
			seen := map[string]bool{}
			keys := []string{}
			for _, m := range matches {
				k := m.Key
				if sep != "" {
					if i := strings.Index(k[len(key):], sep); i >= 0 {
						k = k[:len(key)+i+len(sep)]
					}
				}
				if !seen[k] {
					seen[k] = true
					keys = append(keys, k)
				}
			}
			writeJSON(w, http.StatusOK, keys)
			return
		}
		writeJSON(w, http.StatusOK, matches)
	case http.MethodPut:
		a.mu.Lock()
		defer a.mu.Unlock()
		existing := a.kv[key]
		if raw := q.Get("cas"); raw != "" {
			cas, _ := strconv.ParseUint(raw, 10, 64)
			if (cas == 0 && existing != nil) || (cas != 0 && (existing == nil || existing.ModifyIndex != cas)) {
				writeJSON(w, http.StatusOK, false)
				return
			}
		}
		if session := q.Get("acquire"); session != "" {
			if _, ok := a.sessions[session]; !ok {
				http.Error(w, "invalid session", http.StatusInternalServerError)
				return
			}
			if existing != nil && existing.Session != "" && existing.Session != session {
				writeJSON(w, http.StatusOK, false)
				return
			}
			flags, _ := strconv.ParseUint(q.Get("flags"), 10, 64)
			pair := a.putLocked(key, body, flags)
			if pair.Session != session {
				pair.LockIndex++
			}
			pair.Session = session
			writeJSON(w, http.StatusOK, true)
			return
		}
		if session := q.Get("release"); session != "" {
			if existing == nil || existing.Session != session {
				writeJSON(w, http.StatusOK, false)
				return
			}
			pair := a.putLocked(key, body, existing.Flags)
			pair.Session = ""
			writeJSON(w, http.StatusOK, true)
			return
		}
		flags, _ := strconv.ParseUint(q.Get("flags"), 10, 64)
		a.putLocked(key, body, flags)
		writeJSON(w, http.StatusOK, true)
	case http.MethodDelete:
		a.mu.Lock()
		defer a.mu.Unlock()
		for k := range a.kv {
			if k == key || (q.Has("recurse") && strings.HasPrefix(k, key)) {
				delete(a.kv, k)
			}
		}
		a.bumpLocked()
		writeJSON(w, http.StatusOK, true)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *fakeAgent) serveEventList(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	a.block(r, func() uint64 { return a.eventIndexLocked(name) })
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []map[string]any{}
	for _, ev := range a.events {
		if name != "" && ev.Name != name {
			continue
		}
		out = append(out, map[string]any{
			"ID": ev.ID, "Name": ev.Name, "Payload": api.EncodeValue(ev.Payload),
			"NodeFilter": ev.NodeFilter, "ServiceFilter": ev.ServiceFilter, "TagFilter": ev.TagFilter,
			"Version": ev.Version, "LTime": ev.LTime,
		})
	}
	w.Header().Set("X-Consul-Index", strconv.FormatUint(a.eventIndexLocked(name), 10))
	writeJSON(w, http.StatusOK, out)
}

func (a *fakeAgent) serveSession(w http.ResponseWriter, r *http.Request, rest string, body []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case rest == "create" && r.Method == http.MethodPut:
		var req api.SessionRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
		idx := a.bumpLocked()
		entry := api.SessionEntry{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Node:        "node-1",
			Behavior:    req.Behavior,
			TTL:         req.TTL,
			LockDelay:   api.Duration(15 * time.Second),
			CreateIndex: idx,
			ModifyIndex: idx,
		}
		a.sessions[entry.ID] = entry
		writeJSON(w, http.StatusOK, map[string]string{"ID": entry.ID})
	case strings.HasPrefix(rest, "destroy/") && r.Method == http.MethodPut:
		id := strings.TrimPrefix(rest, "destroy/")
		delete(a.sessions, id)
		for _, pair := range a.kv {
			if pair.Session == id {
				pair.Session = ""
				pair.ModifyIndex = a.bumpLocked()
			}
		}
		writeJSON(w, http.StatusOK, true)
	case strings.HasPrefix(rest, "renew/") && r.Method == http.MethodPut:
		entry, ok := a.sessions[strings.TrimPrefix(rest, "renew/")]
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, []api.SessionEntry{entry})
	case strings.HasPrefix(rest, "info/"):
		w.Header().Set("X-Consul-Index", strconv.FormatUint(a.index, 10))
		entry, ok := a.sessions[strings.TrimPrefix(rest, "info/")]
		if !ok {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, []api.SessionEntry{entry})
	case rest == "list" || strings.HasPrefix(rest, "node/"):
		w.Header().Set("X-Consul-Index", strconv.FormatUint(a.index, 10))
		node := strings.TrimPrefix(rest, "node/")
		out := []api.SessionEntry{}
		for _, entry := range a.sessions {
			if rest == "list" || entry.Node == node {
				out = append(out, entry)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].CreateIndex < out[j].CreateIndex })
		writeJSON(w, http.StatusOK, out)
	default:
		http.Error(w, "unknown session endpoint", http.StatusNotImplemented)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
