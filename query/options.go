package query

import (
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/consulate/transport"
)

// Params is the ordered query-parameter list sent with a request.
type Params = transport.Params

// Consistency selects the read consistency mode.
type Consistency string

// Consistency modes understood by the agent.
const (
	ConsistencyDefault    Consistency = ""
	ConsistencyStale      Consistency = "stale"
	ConsistencyConsistent Consistency = "consistent"
)

// ParseConsistency accepts "", "default", "stale" and "consistent".
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return ConsistencyDefault, nil
	case "stale":
		return ConsistencyStale, nil
	case "consistent":
		return ConsistencyConsistent, nil
	default:
		return "", fmt.Errorf("consulate: unknown consistency mode %q", s)
	}
}

// Options are the per-call read/write modifiers. Every field is optional and
// omitted from the wire when unset.
type Options struct {
	Consistency Consistency
	// CAS is the check-and-set index for writes; 0 is a valid value
	// (create only if absent), hence the pointer.
	CAS        *uint64
	Token      string
	Datacenter string
	Filter     string
	Namespace  string
	Partition  string
}

// CAS returns a pointer to index for Options.CAS.
func CAS(index uint64) *uint64 { return &index }

// Params renders o in a fixed order: consistency, cas, token, dc, filter,
// ns, partition. No validation is performed; the server rejects malformed
// values.
func (o Options) Params() Params {
	var p Params
	switch o.Consistency {
	case ConsistencyDefault:
	default:
		p = p.AddFlag(string(o.Consistency))
	}
	if o.CAS != nil {
		p = p.Add("cas", strconv.FormatUint(*o.CAS, 10))
	}
	if o.Token != "" {
		p = p.Add("token", o.Token)
	}
	if o.Datacenter != "" {
		p = p.Add("dc", o.Datacenter)
	}
	if o.Filter != "" {
		p = p.Add("filter", o.Filter)
	}
	if o.Namespace != "" {
		p = p.Add("ns", o.Namespace)
	}
	if o.Partition != "" {
		p = p.Add("partition", o.Partition)
	}
	return p
}
