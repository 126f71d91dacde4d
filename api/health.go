package api

import (
	"fmt"
	"strings"
)

// Check states.
const (
	HealthAny      = "any"
	HealthPassing  = "passing"
	HealthWarning  = "warning"
	HealthCritical = "critical"
	HealthMaint    = "maintenance"
)

// ParseHealthState accepts the states understood by the state endpoint.
func ParseHealthState(s string) (string, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case HealthAny, HealthPassing, HealthWarning, HealthCritical:
		return v, nil
	default:
		return "", fmt.Errorf("consulate: unknown health state %q", s)
	}
}

// HealthCheck is the result of one check on one node.
type HealthCheck struct {
	Node        string   `json:"Node"`
	CheckID     string   `json:"CheckID"`
	Name        string   `json:"Name"`
	Status      string   `json:"Status"`
	Notes       string   `json:"Notes"`
	Output      string   `json:"Output"`
	ServiceID   string   `json:"ServiceID"`
	ServiceName string   `json:"ServiceName"`
	ServiceTags []string `json:"ServiceTags"`
	Type        string   `json:"Type"`
	CreateIndex uint64   `json:"CreateIndex"`
	ModifyIndex uint64   `json:"ModifyIndex"`
}

// HealthChecks is a set of checks.
type HealthChecks []HealthCheck

// AggregatedStatus folds the checks into one state: maintenance wins over
// critical, critical over warning, and warning over passing. An empty set is
// passing; an unknown status yields "".
func (c HealthChecks) AggregatedStatus() string {
	var warning, critical, maintenance bool
	for _, check := range c {
		if strings.HasPrefix(check.CheckID, "_node_maintenance") || strings.HasPrefix(check.CheckID, "_service_maintenance:") {
			maintenance = true
			continue
		}
		switch check.Status {
		case HealthPassing:
		case HealthWarning:
			warning = true
		case HealthCritical:
			critical = true
		default:
			return ""
		}
	}
	switch {
	case maintenance:
		return HealthMaint
	case critical:
		return HealthCritical
	case warning:
		return HealthWarning
	default:
		return HealthPassing
	}
}

// ServiceEntry is one service instance together with its node and checks.
type ServiceEntry struct {
	Node    *Node         `json:"Node"`
	Service *AgentService `json:"Service"`
	Checks  HealthChecks  `json:"Checks"`
}

// CursorID identifies the entry by node name and service ID.
func (e ServiceEntry) CursorID() string {
	var node, svc string
	if e.Node != nil {
		node = e.Node.Node
	}
	if e.Service != nil {
		svc = e.Service.ID
	}
	return node + "/" + svc
}
