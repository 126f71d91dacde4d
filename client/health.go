package client

import (
	"context"
	"fmt"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// Health reads check results.
type Health struct {
	c *Client
}

// Node returns the checks registered on node.
func (h *Health) Node(ctx context.Context, node string, opts query.Options) (api.HealthChecks, query.Meta, error) {
	if node == "" {
		return nil, query.Meta{}, fmt.Errorf("consulate: node required")
	}
	return fetchList[api.HealthCheck](ctx, h.c, "/v1/health/node/"+escapePath(node), h.c.params(opts))
}

// Checks returns the checks associated with service.
func (h *Health) Checks(ctx context.Context, service string, opts query.Options) (api.HealthChecks, query.Meta, error) {
	if service == "" {
		return nil, query.Meta{}, fmt.Errorf("consulate: service required")
	}
	return fetchList[api.HealthCheck](ctx, h.c, "/v1/health/checks/"+escapePath(service), h.c.params(opts))
}

// Service returns the instances of service with their node and checks.
// passingOnly drops instances with any non-passing check.
func (h *Health) Service(ctx context.Context, service, tag string, passingOnly bool, opts query.Options) ([]api.ServiceEntry, query.Meta, error) {
	if service == "" {
		return nil, query.Meta{}, fmt.Errorf("consulate: service required")
	}
	params := h.c.params(opts)
	if tag != "" {
		params = params.Add("tag", tag)
	}
	if passingOnly {
		params = params.AddFlag("passing")
	}
	return fetchList[api.ServiceEntry](ctx, h.c, "/v1/health/service/"+escapePath(service), params)
}

// State returns every check in state (any, passing, warning or critical).
func (h *Health) State(ctx context.Context, state string, opts query.Options) (api.HealthChecks, query.Meta, error) {
	state, err := api.ParseHealthState(state)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return fetchList[api.HealthCheck](ctx, h.c, "/v1/health/state/"+state, h.c.params(opts))
}
