package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// ACL manages tokens, policies and roles.
type ACL struct {
	c        *Client
	Tokens   *ACLResource[api.ACLToken, api.ACLTokenListEntry]
	Policies *ACLResource[api.ACLPolicy, api.ACLPolicyListEntry]
	Roles    *ACLResource[api.ACLRole, api.ACLRole]
}

func newACL(c *Client) *ACL {
	return &ACL{
		c:        c,
		Tokens:   &ACLResource[api.ACLToken, api.ACLTokenListEntry]{c: c, kind: "token", plural: "tokens"},
		Policies: &ACLResource[api.ACLPolicy, api.ACLPolicyListEntry]{c: c, kind: "policy", plural: "policies", byName: true},
		Roles:    &ACLResource[api.ACLRole, api.ACLRole]{c: c, kind: "role", plural: "roles", byName: true},
	}
}

// TokenSelf reads the token the client authenticates with.
func (a *ACL) TokenSelf(ctx context.Context, opts query.Options) (api.ACLToken, error) {
	var out api.ACLToken
	if _, err := a.c.call(ctx, http.MethodGet, "/v1/acl/token/self", "token/self", a.c.params(opts), nil, &out); err != nil {
		return api.ACLToken{}, err
	}
	return out, nil
}

// ACLRecord is a full ACL record that carries its agent-assigned ID.
type ACLRecord interface {
	ResourceID() string
}

// ACLResource is the CRUD surface shared by tokens, policies and roles.
// T is the full record and L the list entry.
type ACLResource[T ACLRecord, L any] struct {
	c      *Client
	kind   string
	plural string
	byName bool
}

func (r *ACLResource[T, L]) path(id string) string {
	if id == "" {
		return "/v1/acl/" + r.kind
	}
	return "/v1/acl/" + r.kind + "/" + escapePath(id)
}

// Create stores v and returns the record as the agent saved it, including
// the assigned ID.
func (r *ACLResource[T, L]) Create(ctx context.Context, v T, opts query.Options) (T, error) {
	var out T
	if _, err := r.c.call(ctx, http.MethodPut, r.path(""), r.kind, r.c.params(opts), v, &out); err != nil {
		return out, err
	}
	r.c.logDebugCtx(ctx, "client.acl.created", "kind", r.kind, "id", out.ResourceID())
	return out, nil
}

// Read fetches one record by ID.
func (r *ACLResource[T, L]) Read(ctx context.Context, id string, opts query.Options) (T, query.Meta, error) {
	var out T
	id = strings.TrimSpace(id)
	if id == "" {
		return out, query.Meta{}, fmt.Errorf("consulate: %s id required", r.kind)
	}
	meta, err := r.c.call(ctx, http.MethodGet, r.path(id), id, r.c.params(opts), nil, &out)
	return out, meta, err
}

// ReadByName fetches a policy or role by name.
func (r *ACLResource[T, L]) ReadByName(ctx context.Context, name string, opts query.Options) (T, query.Meta, error) {
	var out T
	if !r.byName {
		return out, query.Meta{}, fmt.Errorf("consulate: %s cannot be read by name", r.kind)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return out, query.Meta{}, fmt.Errorf("consulate: %s name required", r.kind)
	}
	meta, err := r.c.call(ctx, http.MethodGet, "/v1/acl/"+r.kind+"/name/"+escapePath(name), name, r.c.params(opts), nil, &out)
	return out, meta, err
}

// Update replaces the record identified by v's ID.
func (r *ACLResource[T, L]) Update(ctx context.Context, v T, opts query.Options) (T, error) {
	var out T
	id := v.ResourceID()
	if id == "" {
		return out, fmt.Errorf("consulate: %s id required for update", r.kind)
	}
	if _, err := r.c.call(ctx, http.MethodPut, r.path(id), id, r.c.params(opts), v, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Delete removes the record.
func (r *ACLResource[T, L]) Delete(ctx context.Context, id string, opts query.Options) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("consulate: %s id required", r.kind)
	}
	ok, err := r.c.callBool(ctx, http.MethodDelete, r.path(id), id, r.c.params(opts), nil)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("consulate: %s %s not deleted", r.kind, id)
	}
	r.c.logDebugCtx(ctx, "client.acl.deleted", "kind", r.kind, "id", id)
	return nil
}

// List returns every record.
func (r *ACLResource[T, L]) List(ctx context.Context, opts query.Options) ([]L, query.Meta, error) {
	return fetchList[L](ctx, r.c, "/v1/acl/"+r.plural, r.c.params(opts))
}
