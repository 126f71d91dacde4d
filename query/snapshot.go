package query

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/consulate/transport"
)

// Meta is the protocol metadata carried on every read response.
type Meta struct {
	Index       uint64
	KnownLeader bool
	LastContact time.Duration
}

// ParseMeta extracts Meta from response headers. Header names match
// case-insensitively; malformed values read as zero.
func ParseMeta(h http.Header) Meta {
	var m Meta
	if raw := strings.TrimSpace(transport.HeaderValue(h, transport.HeaderIndex)); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			m.Index = v
		}
	}
	m.KnownLeader = strings.EqualFold(strings.TrimSpace(transport.HeaderValue(h, transport.HeaderKnownLeader)), "true")
	if raw := strings.TrimSpace(transport.HeaderValue(h, transport.HeaderLastContact)); raw != "" {
		if v, err := strconv.ParseUint(raw, 10, 64); err == nil {
			m.LastContact = time.Duration(v) * time.Millisecond
		}
	}
	return m
}

// Page is one raw read: status, body and metadata.
type Page struct {
	Meta
	Status int
	Body   []byte
}

// Missing reports a 404 page.
func (p Page) Missing() bool { return p.Status == http.StatusNotFound }

// Snapshot is one decoded read of a resource.
type Snapshot[T any] struct {
	Meta
	Entries []T
}

// Len returns the number of entries.
func (s Snapshot[T]) Len() int { return len(s.Entries) }

// Empty reports whether the snapshot has no entries.
func (s Snapshot[T]) Empty() bool { return len(s.Entries) == 0 }

// DecodeJSON decodes a JSON array body. An empty body or null yields no
// entries.
func DecodeJSON[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, err
	}
	return out, nil
}
