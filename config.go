package consulate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/consulate/client"
	"pkt.systems/consulate/internal/pathutil"
	"pkt.systems/pslog"
)

const (
	// DefaultAddress is the agent address used when none is configured.
	DefaultAddress = client.DefaultAddress
	// DefaultScheme applies to addresses without an explicit scheme.
	DefaultScheme = client.DefaultScheme
	// DefaultWaitCeiling bounds every blocking read.
	DefaultWaitCeiling = client.DefaultWaitCeiling
	// DefaultHTTPTimeout bounds requests that are not blocking queries.
	DefaultHTTPTimeout = client.DefaultHTTPTimeout
	// DefaultLogLevel is the CLI log level; logging is off unless raised.
	DefaultLogLevel = "none"
	// DefaultMetricsListen is the default metrics endpoint (Prometheus scrape).
	// Empty disables metrics unless explicitly configured.
	DefaultMetricsListen = ""
	// DefaultPprofListen is the default pprof debug listener (empty disables).
	DefaultPprofListen = ""
	// DefaultConfigFileName is the config file searched for when --config is omitted.
	DefaultConfigFileName = "config.yaml"
	// DefaultBlock is the CLI's default wait for blocking commands.
	DefaultBlock = 30 * time.Second
)

// Environment variables honoured by the CLI. The CONSUL_ names match the
// ones the agent's own tooling reads.
const (
	EnvHTTPAddr   = "CONSUL_HTTP_ADDR"
	EnvHTTPToken  = "CONSUL_HTTP_TOKEN"
	EnvTokenFile  = "CONSUL_HTTP_TOKEN_FILE"
	EnvDatacenter = "CONSUL_DATACENTER"
	EnvNamespace  = "CONSUL_NAMESPACE"
	EnvPartition  = "CONSUL_PARTITION"
	EnvConfigDir  = "CONSULATE_CONFIG_DIR"
	EnvPrefix     = "CONSULATE"
)

// Config captures everything a consulate process needs: the agent connection,
// logging and telemetry.
type Config struct {
	// Address is host:port, http(s)://host:port or unix:///path.
	Address string
	// Scheme applies when Address has none.
	Scheme     string
	Datacenter string
	// Token takes precedence over TokenFile.
	Token     string
	TokenFile string
	Namespace string
	Partition string
	// WaitCeiling caps any single blocking read.
	WaitCeiling time.Duration
	HTTPTimeout time.Duration

	// LogLevel is one of none, trace, debug, info, warn or error.
	LogLevel string
	// LogOutput is a file path, "stdout" or "stderr" (default).
	LogOutput string

	// OTLPEndpoint enables trace export (grpc://, grpcs://, http://, https://
	// or bare host:port for grpc).
	OTLPEndpoint string
	// MetricsListen serves Prometheus metrics when non-empty.
	MetricsListen string
	// PprofListen serves net/http/pprof when non-empty.
	PprofListen string
	// EnableProfilingMetrics adds Go runtime metrics to the metrics endpoint.
	EnableProfilingMetrics bool
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	cfg := Config{}
	_ = cfg.Validate()
	return cfg
}

// ClientConfig returns the subset of c consumed by client.New.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		Address:     c.Address,
		Scheme:      c.Scheme,
		Datacenter:  c.Datacenter,
		Token:       c.Token,
		TokenFile:   c.TokenFile,
		Namespace:   c.Namespace,
		Partition:   c.Partition,
		WaitCeiling: c.WaitCeiling,
		HTTPTimeout: c.HTTPTimeout,
	}
}

// TelemetryEnabled reports whether any exporter or debug listener is configured.
func (c Config) TelemetryEnabled() bool {
	return c.OTLPEndpoint != "" || c.MetricsListen != "" || c.PprofListen != "" || c.EnableProfilingMetrics
}

// Validate normalises c, fills defaults and rejects invalid values.
func (c *Config) Validate() error {
	if c.TokenFile != "" {
		expanded, err := pathutil.ExpandUserAndEnv(c.TokenFile)
		if err != nil {
			return fmt.Errorf("config: token file: %w", err)
		}
		c.TokenFile = expanded
	}
	cc := c.ClientConfig()
	if err := cc.Validate(); err != nil {
		return err
	}
	c.Address = cc.Address
	c.Scheme = cc.Scheme
	c.Datacenter = cc.Datacenter
	c.Token = cc.Token
	c.TokenFile = cc.TokenFile
	c.Namespace = cc.Namespace
	c.Partition = cc.Partition
	c.WaitCeiling = cc.WaitCeiling
	c.HTTPTimeout = cc.HTTPTimeout

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	switch c.LogLevel {
	case "none", "off", "disabled":
	default:
		if _, ok := pslog.ParseLevel(c.LogLevel); !ok {
			return fmt.Errorf("config: invalid log level %q", c.LogLevel)
		}
	}
	c.LogOutput = strings.TrimSpace(c.LogOutput)

	c.OTLPEndpoint = strings.TrimSpace(c.OTLPEndpoint)
	if c.OTLPEndpoint != "" {
		if _, err := resolveOTLPTarget(c.OTLPEndpoint); err != nil {
			return fmt.Errorf("config: otlp endpoint: %w", err)
		}
	}
	c.MetricsListen = strings.TrimSpace(c.MetricsListen)
	c.PprofListen = strings.TrimSpace(c.PprofListen)
	if c.EnableProfilingMetrics && c.MetricsListen == "" {
		return fmt.Errorf("config: profiling metrics require metrics listen address")
	}
	return nil
}

// DefaultConfigDir returns the default configuration directory
// ($CONSULATE_CONFIG_DIR, or $HOME/.consulate).
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(EnvConfigDir)); override != "" {
		if filepath.IsAbs(override) {
			return override, nil
		}
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".consulate"), nil
}

// DefaultConfigPath returns the config file searched for when none is given.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFileName), nil
}
