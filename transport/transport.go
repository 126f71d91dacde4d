// Package transport is the boundary between consulate and the agent's HTTP
// API. Everything above it speaks in terms of Request and Response values;
// the HTTP implementation in this package is the production Transport and
// tests substitute a Func.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Header names used by the long-poll protocol.
const (
	HeaderIndex       = "X-Consul-Index"
	HeaderKnownLeader = "X-Consul-KnownLeader"
	HeaderLastContact = "X-Consul-LastContact"
	HeaderToken       = "X-Consul-Token"
)

// Request describes one API call. Path is relative to the agent base URL and
// includes the version prefix (for example /v1/kv/app/config).
type Request struct {
	Method string
	Path   string
	Params Params
	Body   []byte
	Header http.Header
}

// Response is the raw result of a request that reached the server. HTTP
// error statuses are reported here, never as Go errors.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// HeaderValue returns the named response header, matching case-insensitively.
func (r *Response) HeaderValue(name string) string {
	if r == nil {
		return ""
	}
	return HeaderValue(r.Header, name)
}

// Transport issues requests against the agent.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Func adapts a function to the Transport interface.
type Func func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f Func) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Error reports a request that never produced a response: connection
// refused, DNS failure, malformed path, or a body that could not be read.
type Error struct {
	Method string
	URL    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("consulate: %s %s: %v", e.Method, e.URL, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HeaderValue looks up name in h. Canonical keys are tried first, then a
// case-insensitive scan so hand-built header maps behave the same as ones
// produced by net/http.
func HeaderValue(h http.Header, name string) string {
	if h == nil {
		return ""
	}
	if v := h.Get(name); v != "" {
		return v
	}
	for key, values := range h {
		if strings.EqualFold(key, name) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
