package transport

import (
	"net/url"
	"strings"
)

// Param is one query-string parameter. Flag parameters are emitted without a
// value (?stale, ?recurse).
type Param struct {
	Key   string
	Value string
	Flag  bool
}

// Params is an ordered list of query parameters. Methods never mutate the
// receiver; they return a modified copy.
type Params []Param

// Add appends key=value.
func (p Params) Add(key, value string) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	return append(out, Param{Key: key, Value: value})
}

// AddFlag appends a value-less flag.
func (p Params) AddFlag(key string) Params {
	out := make(Params, len(p), len(p)+1)
	copy(out, p)
	return append(out, Param{Key: key, Flag: true})
}

// Set replaces every occurrence of key with a single key=value placed where
// the first occurrence was, or appends it when key is absent.
func (p Params) Set(key, value string) Params {
	out := make(Params, 0, len(p)+1)
	replaced := false
	for _, param := range p {
		if param.Key != key {
			out = append(out, param)
			continue
		}
		if !replaced {
			out = append(out, Param{Key: key, Value: value})
			replaced = true
		}
	}
	if !replaced {
		out = append(out, Param{Key: key, Value: value})
	}
	return out
}

// Without drops every occurrence of key.
func (p Params) Without(key string) Params {
	out := make(Params, 0, len(p))
	for _, param := range p {
		if param.Key != key {
			out = append(out, param)
		}
	}
	return out
}

// Get returns the first value recorded for key.
func (p Params) Get(key string) (string, bool) {
	for _, param := range p {
		if param.Key == key {
			return param.Value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Encode renders p as a query string in order, without the leading '?'.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for i, param := range p {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(param.Key))
		if param.Flag {
			continue
		}
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(param.Value))
	}
	return b.String()
}
