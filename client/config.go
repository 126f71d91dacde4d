package client

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/consulate/query"
	"pkt.systems/consulate/transport"
)

const (
	// DefaultAddress is the agent address used when Config.Address is empty.
	DefaultAddress = transport.DefaultAddress
	// DefaultScheme applies to addresses without an explicit scheme.
	DefaultScheme = transport.DefaultScheme
	// DefaultWaitCeiling bounds every blocking read.
	DefaultWaitCeiling = query.DefaultWaitCeiling
	// DefaultHTTPTimeout bounds requests that are not blocking queries.
	DefaultHTTPTimeout = 30 * time.Second
)

// Config is the construction-time configuration of a Client. The zero value
// targets a local agent over plain HTTP without a token.
type Config struct {
	// Address is host:port, http(s)://host:port or unix:///path.
	Address string
	// Scheme is applied when Address has none ("http" or "https").
	Scheme string
	// Datacenter is sent as dc on every request that does not set one.
	Datacenter string
	// Token is the ACL token sent in X-Consul-Token. It takes precedence over
	// TokenFile.
	Token string
	// TokenFile is read at construction and reloaded when it changes.
	TokenFile string
	// Namespace and Partition are defaults for requests that do not set them.
	Namespace string
	Partition string
	// WaitCeiling caps the duration of any single blocking read.
	WaitCeiling time.Duration
	// HTTPTimeout bounds non-blocking requests. Zero selects the default.
	HTTPTimeout time.Duration
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	cfg := Config{}
	_ = cfg.Validate()
	return cfg
}

// Validate normalises c, fills defaults and rejects invalid values.
func (c *Config) Validate() error {
	c.Address = strings.TrimSpace(c.Address)
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	c.Scheme = strings.ToLower(strings.TrimSpace(c.Scheme))
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	switch c.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("config: scheme must be %q or %q", "http", "https")
	}
	if _, _, err := transport.ParseAddress(c.Address, c.Scheme); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	c.Token = strings.TrimSpace(c.Token)
	c.TokenFile = strings.TrimSpace(c.TokenFile)
	c.Datacenter = strings.TrimSpace(c.Datacenter)
	c.Namespace = strings.TrimSpace(c.Namespace)
	c.Partition = strings.TrimSpace(c.Partition)
	if c.WaitCeiling < 0 {
		return fmt.Errorf("config: wait ceiling must be >= 0")
	}
	if c.WaitCeiling == 0 {
		c.WaitCeiling = DefaultWaitCeiling
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("config: http timeout must be >= 0")
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	return nil
}
