package client

import (
	"context"
	"net/http"

	"pkt.systems/consulate/query"
)

// Status reports raft cluster membership.
type Status struct {
	c *Client
}

// Leader returns the address of the raft leader, or "" when there is none.
func (s *Status) Leader(ctx context.Context) (string, error) {
	var out string
	if _, err := s.c.call(ctx, http.MethodGet, "/v1/status/leader", "leader", s.dcParams(), nil, &out); err != nil {
		return "", err
	}
	return out, nil
}

// Peers returns the addresses of the raft peers.
func (s *Status) Peers(ctx context.Context) ([]string, error) {
	var out []string
	if _, err := s.c.call(ctx, http.MethodGet, "/v1/status/peers", "peers", s.dcParams(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// dcParams carries only the datacenter; the status endpoints take nothing else.
func (s *Status) dcParams() query.Params {
	return query.Options{Datacenter: s.c.cfg.Datacenter}.Params()
}
