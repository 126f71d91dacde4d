package api

import "time"

// ACLLink references a policy or role by ID or name.
type ACLLink struct {
	ID   string `json:"ID,omitempty"`
	Name string `json:"Name,omitempty"`
}

// ACLToken is a full token record.
type ACLToken struct {
	// AccessorID is the public identifier of the token.
	AccessorID string `json:"AccessorID,omitempty"`
	// SecretID is the bearer credential. Only returned to privileged callers.
	SecretID       string     `json:"SecretID,omitempty"`
	Description    string     `json:"Description,omitempty"`
	Policies       []ACLLink  `json:"Policies,omitempty"`
	Roles          []ACLLink  `json:"Roles,omitempty"`
	Local          bool       `json:"Local,omitempty"`
	ExpirationTime *time.Time `json:"ExpirationTime,omitempty"`
	CreateTime     time.Time  `json:"CreateTime,omitempty"`
	Namespace      string     `json:"Namespace,omitempty"`
	Partition      string     `json:"Partition,omitempty"`
	CreateIndex    uint64     `json:"CreateIndex,omitempty"`
	ModifyIndex    uint64     `json:"ModifyIndex,omitempty"`
}

// ResourceID returns the accessor ID.
func (t ACLToken) ResourceID() string { return t.AccessorID }

// ACLTokenListEntry is a token as returned by the list endpoint. SecretID is
// redacted by the agent unless the caller may read it.
type ACLTokenListEntry struct {
	AccessorID  string    `json:"AccessorID"`
	SecretID    string    `json:"SecretID,omitempty"`
	Description string    `json:"Description"`
	Policies    []ACLLink `json:"Policies,omitempty"`
	Roles       []ACLLink `json:"Roles,omitempty"`
	Local       bool      `json:"Local"`
	CreateTime  time.Time `json:"CreateTime"`
	Legacy      bool      `json:"Legacy,omitempty"`
	CreateIndex uint64    `json:"CreateIndex"`
	ModifyIndex uint64    `json:"ModifyIndex"`
}

// CursorID identifies the entry by accessor ID.
func (t ACLTokenListEntry) CursorID() string { return t.AccessorID }

// ACLPolicy is a named set of rules.
type ACLPolicy struct {
	ID          string   `json:"ID,omitempty"`
	Name        string   `json:"Name"`
	Description string   `json:"Description,omitempty"`
	Rules       string   `json:"Rules,omitempty"`
	Datacenters []string `json:"Datacenters,omitempty"`
	Namespace   string   `json:"Namespace,omitempty"`
	Partition   string   `json:"Partition,omitempty"`
	CreateIndex uint64   `json:"CreateIndex,omitempty"`
	ModifyIndex uint64   `json:"ModifyIndex,omitempty"`
}

// ResourceID returns the policy ID.
func (p ACLPolicy) ResourceID() string { return p.ID }

// ACLPolicyListEntry is a policy without its rules.
type ACLPolicyListEntry struct {
	ID          string   `json:"ID"`
	Name        string   `json:"Name"`
	Description string   `json:"Description"`
	Datacenters []string `json:"Datacenters,omitempty"`
	CreateIndex uint64   `json:"CreateIndex"`
	ModifyIndex uint64   `json:"ModifyIndex"`
}

// CursorID identifies the entry by policy ID.
func (p ACLPolicyListEntry) CursorID() string { return p.ID }

// ACLRole groups policies under one name.
type ACLRole struct {
	ID          string    `json:"ID,omitempty"`
	Name        string    `json:"Name"`
	Description string    `json:"Description,omitempty"`
	Policies    []ACLLink `json:"Policies,omitempty"`
	Namespace   string    `json:"Namespace,omitempty"`
	Partition   string    `json:"Partition,omitempty"`
	CreateIndex uint64    `json:"CreateIndex,omitempty"`
	ModifyIndex uint64    `json:"ModifyIndex,omitempty"`
}

// ResourceID returns the role ID.
func (r ACLRole) ResourceID() string { return r.ID }

// CursorID identifies the role by ID.
func (r ACLRole) CursorID() string { return r.ID }
