package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// newStubClient points a client at handler. The fake agent covers the
// stateful endpoints; stubs cover read-mostly ones.
func newStubClient(t *testing.T, handler http.Handler, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.Address = srv.URL
	cli, err := New(cfg, WithEngineOptions(query.WithSpuriousBackoff(0, 0)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { cli.Close() })
	return cli
}

func indexed(index uint64, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Consul-Index", strconv.FormatUint(index, 10))
		writeJSON(w, http.StatusOK, v)
	}
}

func TestCatalogReads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/catalog/datacenters", indexed(0, []string{"dc1", "dc2"}))
	mux.HandleFunc("/v1/catalog/nodes", indexed(5, []api.Node{{Node: "n1", Address: "10.0.0.1"}}))
	mux.HandleFunc("/v1/catalog/services", indexed(6, map[string][]string{"web": {"blue", "v1"}, "consul": nil}))
	serviceQuery := make(chan string, 1)
	mux.HandleFunc("/v1/catalog/service/web", func(w http.ResponseWriter, r *http.Request) {
		serviceQuery <- r.URL.RawQuery
		indexed(7, []api.CatalogService{{Node: "n1", ServiceID: "web-1", ServiceName: "web", ServicePort: 8080}})(w, r)
	})
	cli := newStubClient(t, mux, Config{Datacenter: "dc1"})
	ctx := context.Background()

	dcs, err := cli.Catalog().Datacenters(ctx)
	if err != nil || len(dcs) != 2 {
		t.Fatalf("datacenters: %v %v", dcs, err)
	}
	nodes, meta, err := cli.Catalog().Nodes(ctx, query.Options{})
	if err != nil || len(nodes) != 1 || nodes[0].Node != "n1" || meta.Index != 5 {
		t.Fatalf("nodes: %+v %+v %v", nodes, meta, err)
	}
	services, _, err := cli.Catalog().Services(ctx, query.Options{})
	if err != nil || len(services["web"]) != 2 {
		t.Fatalf("services: %v %v", services, err)
	}
	instances, _, err := cli.Catalog().Service(ctx, "web", "blue", query.Options{Consistency: query.ConsistencyStale})
	if err != nil || len(instances) != 1 || instances[0].ServicePort != 8080 {
		t.Fatalf("service: %+v %v", instances, err)
	}
	if q := <-serviceQuery; q != "stale&dc=dc1&tag=blue" {
		t.Fatalf("service query = %q", q)
	}
	if _, _, err := cli.Catalog().Service(ctx, " ", "", query.Options{}); err == nil {
		t.Fatal("expected error for empty service name")
	}
}

func TestCatalogWatchServiceWaitsForInstances(t *testing.T) {
	var mu sync.Mutex
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/catalog/service/api", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			indexed(10, []api.CatalogService{})(w, r)
			return
		}
		if r.URL.Query().Get("index") != "10" {
			t.Errorf("expected blocking read at index 10, got %q", r.URL.RawQuery)
		}
		indexed(11, []api.CatalogService{{Node: "n2", ServiceID: "api-1", ServiceName: "api"}})(w, r)
	})
	cli := newStubClient(t, mux, Config{})

	snap, err := cli.Catalog().WatchService(context.Background(), "api", "", policyWait, 5*time.Second, query.Options{})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if snap.Index != 11 || snap.Len() != 1 || snap.Entries[0].CursorID() != "n2/api-1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestCatalogRegister(t *testing.T) {
	registered := make(chan api.CatalogRegistration, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/catalog/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		var reg api.CatalogRegistration
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &reg); err != nil {
			t.Errorf("decode: %v", err)
		}
		registered <- reg
		writeJSON(w, http.StatusOK, true)
	})
	mux.HandleFunc("/v1/catalog/deregister", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, true)
	})
	cli := newStubClient(t, mux, Config{})
	ctx := context.Background()

	reg := api.CatalogRegistration{
		Node:    "ext-1",
		Address: "192.0.2.10",
		Service: &api.AgentService{ID: "db-1", Service: "db", Port: 5432},
	}
	if err := cli.Catalog().Register(ctx, reg, query.Options{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	got := <-registered
	if got.Node != "ext-1" || got.Service == nil || got.Service.Port != 5432 {
		t.Fatalf("unexpected body %+v", got)
	}
	if err := cli.Catalog().Register(ctx, api.CatalogRegistration{Node: "x"}, query.Options{}); err == nil {
		t.Fatal("expected error without address")
	}
	if err := cli.Catalog().Deregister(ctx, api.CatalogDeregistration{Node: "ext-1", ServiceID: "db-1"}, query.Options{}); err != nil {
		t.Fatalf("deregister: %v", err)
	}
}

func TestHealthReads(t *testing.T) {
	serviceQuery := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health/node/n1", indexed(3, api.HealthChecks{
		{Node: "n1", CheckID: "serfHealth", Status: api.HealthPassing},
		{Node: "n1", CheckID: "disk", Status: api.HealthWarning},
	}))
	mux.HandleFunc("/v1/health/service/web", func(w http.ResponseWriter, r *http.Request) {
		serviceQuery <- r.URL.RawQuery
		indexed(4, []api.ServiceEntry{{
			Node:    &api.Node{Node: "n1"},
			Service: &api.AgentService{ID: "web-1", Service: "web"},
			Checks:  api.HealthChecks{{Status: api.HealthPassing}},
		}})(w, r)
	})
	mux.HandleFunc("/v1/health/state/critical", indexed(5, api.HealthChecks{{CheckID: "db", Status: api.HealthCritical}}))
	cli := newStubClient(t, mux, Config{})
	ctx := context.Background()

	checks, _, err := cli.Health().Node(ctx, "n1", query.Options{})
	if err != nil {
		t.Fatalf("node: %v", err)
	}
	if checks.AggregatedStatus() != api.HealthWarning {
		t.Fatalf("aggregated = %q", checks.AggregatedStatus())
	}
	entries, _, err := cli.Health().Service(ctx, "web", "", true, query.Options{})
	if err != nil || len(entries) != 1 || entries[0].Service.ID != "web-1" {
		t.Fatalf("service: %+v %v", entries, err)
	}
	if q := <-serviceQuery; q != "passing" {
		t.Fatalf("service query = %q", q)
	}
	critical, _, err := cli.Health().State(ctx, "CRITICAL", query.Options{})
	if err != nil || len(critical) != 1 {
		t.Fatalf("state: %+v %v", critical, err)
	}
	if _, _, err := cli.Health().State(ctx, "broken", query.Options{}); err == nil {
		t.Fatal("expected error for unknown state")
	}
}

func TestACLTokens(t *testing.T) {
	const accessor = "6a1253d2-1785-24fd-91c2-f8e78c745511"
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/acl/token", func(w http.ResponseWriter, r *http.Request) {
		var in api.ACLToken
		_ = json.NewDecoder(r.Body).Decode(&in)
		in.AccessorID = accessor
		in.SecretID = "secret"
		writeJSON(w, http.StatusOK, in)
	})
	mux.HandleFunc("/v1/acl/token/"+accessor, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, true)
		default:
			writeJSON(w, http.StatusOK, api.ACLToken{AccessorID: accessor, Description: "ci"})
		}
	})
	mux.HandleFunc("/v1/acl/token/self", indexed(0, api.ACLToken{AccessorID: accessor}))
	mux.HandleFunc("/v1/acl/tokens", indexed(9, []api.ACLTokenListEntry{{AccessorID: accessor, Description: "ci"}}))
	mux.HandleFunc("/v1/acl/policy/name/readonly", indexed(2, api.ACLPolicy{ID: "p1", Name: "readonly"}))
	cli := newStubClient(t, mux, Config{})
	ctx := context.Background()

	created, err := cli.ACL().Tokens.Create(ctx, api.ACLToken{Description: "ci"}, query.Options{})
	if err != nil || created.ResourceID() != accessor || created.SecretID != "secret" {
		t.Fatalf("create: %+v %v", created, err)
	}
	read, _, err := cli.ACL().Tokens.Read(ctx, accessor, query.Options{})
	if err != nil || read.Description != "ci" {
		t.Fatalf("read: %+v %v", read, err)
	}
	self, err := cli.ACL().TokenSelf(ctx, query.Options{})
	if err != nil || self.AccessorID != accessor {
		t.Fatalf("self: %+v %v", self, err)
	}
	list, meta, err := cli.ACL().Tokens.List(ctx, query.Options{})
	if err != nil || len(list) != 1 || meta.Index != 9 {
		t.Fatalf("list: %+v %+v %v", list, meta, err)
	}
	if err := cli.ACL().Tokens.Delete(ctx, accessor, query.Options{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, _, err := cli.ACL().Tokens.ReadByName(ctx, "ci", query.Options{}); err == nil {
		t.Fatal("tokens cannot be read by name")
	}
	if _, err := cli.ACL().Tokens.Update(ctx, api.ACLToken{}, query.Options{}); err == nil {
		t.Fatal("expected error for update without id")
	}
	policy, _, err := cli.ACL().Policies.ReadByName(ctx, "readonly", query.Options{})
	if err != nil || policy.ID != "p1" {
		t.Fatalf("policy by name: %+v %v", policy, err)
	}
	_, _, err = cli.ACL().Roles.Read(ctx, "missing", query.Options{})
	if !errors.Is(err, query.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing role, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	a := newFakeAgent(t)
	cli := newTestClient(t, a)
	leader, err := cli.Status().Leader(context.Background())
	if err != nil || leader != "10.0.0.1:8300" {
		t.Fatalf("leader: %q %v", leader, err)
	}
	peers, err := cli.Status().Peers(context.Background())
	if err != nil || len(peers) != 2 {
		t.Fatalf("peers: %v %v", peers, err)
	}
}

func TestUnexpectedStatusIsTyped(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/status/leader", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rpc error: no leader", http.StatusInternalServerError)
	})
	cli := newStubClient(t, mux, Config{})
	_, err := cli.Status().Leader(context.Background())
	var se *query.StatusError
	if !errors.As(err, &se) || se.Status != http.StatusInternalServerError {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !errors.Is(err, query.ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}
}
