package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session behaviours applied to held locks when a session is invalidated.
const (
	SessionBehaviorRelease = "release"
	SessionBehaviorDelete  = "delete"
)

// SessionEntry describes a session as returned by the agent.
type SessionEntry struct {
	ID            string   `json:"ID"`
	Name          string   `json:"Name"`
	Node          string   `json:"Node"`
	LockDelay     Duration `json:"LockDelay"`
	Behavior      string   `json:"Behavior"`
	TTL           string   `json:"TTL"`
	NodeChecks    []string `json:"NodeChecks,omitempty"`
	ServiceChecks []string `json:"ServiceChecks,omitempty"`
	CreateIndex   uint64   `json:"CreateIndex"`
	ModifyIndex   uint64   `json:"ModifyIndex"`
}

// SessionRequest is the body of a session create call. Zero fields are left
// to the agent's defaults.
type SessionRequest struct {
	Name       string   `json:"Name,omitempty"`
	Node       string   `json:"Node,omitempty"`
	LockDelay  string   `json:"LockDelay,omitempty"`
	Behavior   string   `json:"Behavior,omitempty"`
	TTL        string   `json:"TTL,omitempty"`
	NodeChecks []string `json:"NodeChecks,omitempty"`
}

// Validate rejects behaviours the agent does not know and TTLs outside the
// 10s..24h window the agent enforces.
func (r SessionRequest) Validate() error {
	switch strings.ToLower(r.Behavior) {
	case "", SessionBehaviorRelease, SessionBehaviorDelete:
	default:
		return fmt.Errorf("consulate: unknown session behavior %q", r.Behavior)
	}
	if r.TTL != "" {
		ttl, err := time.ParseDuration(r.TTL)
		if err != nil {
			return fmt.Errorf("consulate: session ttl: %w", err)
		}
		if ttl < 10*time.Second || ttl > 24*time.Hour {
			return fmt.Errorf("consulate: session ttl %s outside 10s..24h", ttl)
		}
	}
	if r.LockDelay != "" {
		if _, err := time.ParseDuration(r.LockDelay); err != nil {
			return fmt.Errorf("consulate: session lock delay: %w", err)
		}
	}
	return nil
}

// SessionCreated is the response to a create call.
type SessionCreated struct {
	ID string `json:"ID"`
}

// ValidateID checks that id is a canonical UUID. Session, token and event
// identifiers all use this form.
func ValidateID(kind, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("consulate: invalid %s id %q: %w", kind, id, err)
	}
	if parsed.String() != strings.ToLower(id) {
		return fmt.Errorf("consulate: invalid %s id %q: not in canonical form", kind, id)
	}
	return nil
}

// Duration decodes the agent's nanosecond integer durations and also accepts
// Go duration strings.
type Duration time.Duration

// UnmarshalJSON accepts 15000000000 and "15s".
func (d *Duration) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*d = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		parsed, err := time.ParseDuration(strings.Trim(raw, `"`))
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if _, err := fmt.Sscan(raw, &ns); err != nil {
		return fmt.Errorf("consulate: duration %s: %w", raw, err)
	}
	*d = Duration(ns)
	return nil
}

// MarshalJSON renders nanoseconds as the agent does.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%d", int64(d))), nil
}

// String formats d as a time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }
