package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pkt.systems/consulate/api"
	"pkt.systems/consulate/query"
)

// Catalog reads and writes the service catalog.
type Catalog struct {
	c *Client
}

// Datacenters lists known datacenters, nearest first.
func (cat *Catalog) Datacenters(ctx context.Context) ([]string, error) {
	var out []string
	if _, err := cat.c.call(ctx, http.MethodGet, "/v1/catalog/datacenters", "datacenters", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Nodes lists catalog nodes.
func (cat *Catalog) Nodes(ctx context.Context, opts query.Options) ([]api.Node, query.Meta, error) {
	return fetchList[api.Node](ctx, cat.c, "/v1/catalog/nodes", cat.c.params(opts))
}

// Services maps every service name to its tags.
func (cat *Catalog) Services(ctx context.Context, opts query.Options) (map[string][]string, query.Meta, error) {
	out := map[string][]string{}
	meta, err := cat.c.call(ctx, http.MethodGet, "/v1/catalog/services", "services", cat.c.params(opts), nil, &out)
	if err != nil {
		return nil, meta, err
	}
	return out, meta, nil
}

func (cat *Catalog) serviceSource(name, tag string, opts query.Options) (*query.Source[api.CatalogService], error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("consulate: service name required")
	}
	params := cat.c.params(opts)
	if tag != "" {
		params = params.Add("tag", tag)
	}
	return listSource[api.CatalogService](cat.c, "/v1/catalog/service/"+escapePath(name), params, nil), nil
}

// Service lists the instances of a service, optionally narrowed to tag.
func (cat *Catalog) Service(ctx context.Context, name, tag string, opts query.Options) ([]api.CatalogService, query.Meta, error) {
	src, err := cat.serviceSource(name, tag, opts)
	if err != nil {
		return nil, query.Meta{}, err
	}
	snap, err := src.Poll(ctx)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return snap.Entries, snap.Meta, nil
}

// WatchService resolves the instance list of a service under policy. With
// NotFound set to wait it blocks until the first instance registers; with
// Found set to wait it returns after the next change.
func (cat *Catalog) WatchService(ctx context.Context, name, tag string, policy query.Policy, timeout time.Duration, opts query.Options) (query.Snapshot[api.CatalogService], error) {
	src, err := cat.serviceSource(name, tag, opts)
	if err != nil {
		return query.Snapshot[api.CatalogService]{}, err
	}
	return query.GetAll(ctx, src, name, policy, timeout)
}

// Register writes a node, service or check directly to the catalog.
func (cat *Catalog) Register(ctx context.Context, reg api.CatalogRegistration, opts query.Options) error {
	if reg.Node == "" || reg.Address == "" {
		return fmt.Errorf("consulate: registration requires node and address")
	}
	if _, err := cat.c.call(ctx, http.MethodPut, "/v1/catalog/register", reg.Node, cat.c.params(opts), reg, nil); err != nil {
		return err
	}
	cat.c.logDebugCtx(ctx, "client.catalog.registered", "node", reg.Node)
	return nil
}

// Deregister removes a node, service or check from the catalog.
func (cat *Catalog) Deregister(ctx context.Context, dereg api.CatalogDeregistration, opts query.Options) error {
	if dereg.Node == "" {
		return fmt.Errorf("consulate: deregistration requires node")
	}
	if _, err := cat.c.call(ctx, http.MethodPut, "/v1/catalog/deregister", dereg.Node, cat.c.params(opts), dereg, nil); err != nil {
		return err
	}
	cat.c.logDebugCtx(ctx, "client.catalog.deregistered", "node", dereg.Node, "service", dereg.ServiceID, "check", dereg.CheckID)
	return nil
}
