package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// KVPair is one key/value entry as stored by the agent.
type KVPair struct {
	// Key is the full key path without a leading slash.
	Key string `json:"Key"`
	// Value is the decoded payload. Nil for folder placeholders.
	Value []byte `json:"Value"`
	// Flags is an opaque 64-bit value attached by the writer.
	Flags uint64 `json:"Flags"`
	// CreateIndex is the raft index at which the key was created.
	CreateIndex uint64 `json:"CreateIndex"`
	// ModifyIndex is the raft index of the last write; use it for check-and-set.
	ModifyIndex uint64 `json:"ModifyIndex"`
	// LockIndex counts successful lock acquisitions of the key.
	LockIndex uint64 `json:"LockIndex"`
	// Session is the session holding the lock on the key, if any.
	Session string `json:"Session,omitempty"`
}

// CursorID identifies a KV entry by its key.
func (p KVPair) CursorID() string { return p.Key }

// Locked reports whether a session holds the key.
func (p KVPair) Locked() bool { return p.Session != "" }

// MarshalJSON encodes Value as base64 text, or null when absent.
func (p KVPair) MarshalJSON() ([]byte, error) {
	w := kvWire{
		Key:         p.Key,
		Flags:       p.Flags,
		CreateIndex: p.CreateIndex,
		ModifyIndex: p.ModifyIndex,
		LockIndex:   p.LockIndex,
		Session:     p.Session,
	}
	if p.Value != nil {
		v := EncodeValue(p.Value)
		w.Value = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes one entry, reporting a *ValueError for a malformed
// payload.
func (p *KVPair) UnmarshalJSON(data []byte) error {
	var w kvWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	out, err := w.pair()
	if err != nil {
		return err
	}
	*p = out
	return nil
}

type kvWire struct {
	Key         string  `json:"Key"`
	Value       *string `json:"Value"`
	Flags       uint64  `json:"Flags"`
	CreateIndex uint64  `json:"CreateIndex"`
	ModifyIndex uint64  `json:"ModifyIndex"`
	LockIndex   uint64  `json:"LockIndex"`
	Session     string  `json:"Session,omitempty"`
}

func (w kvWire) pair() (KVPair, error) {
	p := KVPair{
		Key:         w.Key,
		Flags:       w.Flags,
		CreateIndex: w.CreateIndex,
		ModifyIndex: w.ModifyIndex,
		LockIndex:   w.LockIndex,
		Session:     w.Session,
	}
	if w.Value != nil {
		value, err := DecodeValue(*w.Value)
		if err != nil {
			return KVPair{}, &ValueError{Key: w.Key, Err: err}
		}
		p.Value = value
	}
	return p, nil
}

// DecodeKVPairs decodes a KV read body. An empty body yields no entries.
func DecodeKVPairs(body []byte) ([]KVPair, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var wire []kvWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, err
	}
	out := make([]KVPair, 0, len(wire))
	for _, w := range wire {
		p, err := w.pair()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodeKeys decodes a keys-only listing.
func DecodeKeys(body []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var keys []string
	if err := json.Unmarshal(trimmed, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// EncodeValue renders a payload as standard padded base64.
func EncodeValue(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DecodeValue reverses EncodeValue.
func DecodeValue(encoded string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(encoded)
}

// ValueError reports a payload that is not valid base64.
type ValueError struct {
	Key string
	Err error
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("consulate: value of %s: %v", e.Key, e.Err)
}

// Unwrap exposes the base64 error.
func (e *ValueError) Unwrap() error { return e.Err }
