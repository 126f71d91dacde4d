package client

import (
	"context"
	"fmt"
	"net/http"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// Sessions manages sessions, the liveness handles that locks hang off.
type Sessions struct {
	c *Client
}

// Create opens a session and returns its ID.
func (s *Sessions) Create(ctx context.Context, req api.SessionRequest, opts query.Options) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	var out api.SessionCreated
	if _, err := s.c.call(ctx, http.MethodPut, "/v1/session/create", "session", s.c.params(opts), req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", &query.DecodingError{Key: "session", Err: fmt.Errorf("empty session id")}
	}
	s.c.logDebugCtx(ctx, "client.session.created", "session", out.ID, "name", req.Name, "ttl", req.TTL)
	return out.ID, nil
}

// Destroy invalidates a session, releasing or deleting the keys it holds
// according to its behaviour.
func (s *Sessions) Destroy(ctx context.Context, id string, opts query.Options) error {
	if err := api.ValidateID("session", id); err != nil {
		return err
	}
	ok, err := s.c.callBool(ctx, http.MethodPut, "/v1/session/destroy/"+id, id, s.c.params(opts), nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("consulate: session %s not destroyed", id)
	}
	s.c.logDebugCtx(ctx, "client.session.destroyed", "session", id)
	return nil
}

// Renew resets the TTL of a session.
func (s *Sessions) Renew(ctx context.Context, id string, opts query.Options) (api.SessionEntry, error) {
	if err := api.ValidateID("session", id); err != nil {
		return api.SessionEntry{}, err
	}
	var out []api.SessionEntry
	if _, err := s.c.call(ctx, http.MethodPut, "/v1/session/renew/"+id, id, s.c.params(opts), nil, &out); err != nil {
		return api.SessionEntry{}, err
	}
	if len(out) == 0 {
		return api.SessionEntry{}, &query.NotFoundError{Key: id}
	}
	return out[0], nil
}

// Info reads one session.
func (s *Sessions) Info(ctx context.Context, id string, opts query.Options) (api.SessionEntry, query.Meta, error) {
	if err := api.ValidateID("session", id); err != nil {
		return api.SessionEntry{}, query.Meta{}, err
	}
	entries, meta, err := fetchList[api.SessionEntry](ctx, s.c, "/v1/session/info/"+id, s.c.params(opts))
	if err != nil {
		return api.SessionEntry{}, meta, err
	}
	if len(entries) == 0 {
		return api.SessionEntry{}, meta, &query.NotFoundError{Key: id}
	}
	return entries[0], meta, nil
}

// List returns every session in the datacenter.
func (s *Sessions) List(ctx context.Context, opts query.Options) ([]api.SessionEntry, query.Meta, error) {
	return fetchList[api.SessionEntry](ctx, s.c, "/v1/session/list", s.c.params(opts))
}

// Node returns the sessions belonging to node.
func (s *Sessions) Node(ctx context.Context, node string, opts query.Options) ([]api.SessionEntry, query.Meta, error) {
	if node == "" {
		return nil, query.Meta{}, fmt.Errorf("consulate: node required")
	}
	return fetchList[api.SessionEntry](ctx, s.c, "/v1/session/node/"+escapePath(node), s.c.params(opts))
}
