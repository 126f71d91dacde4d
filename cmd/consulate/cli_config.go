package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/consulate"
	"pkt.systems/consulate/client"
	"pkt.systems/consulate/internal/svcfields"
	"pkt.systems/consulate/query"
	"pkt.systems/pslog"
)

const envCorrelation = "CONSULATE_CORRELATION_ID"

// cliConfig resolves the persistent flags into a client for one command run.
type cliConfig struct {
	baseLogger pslog.Logger
	logger     pslog.Logger
	logClosers []io.Closer
	telemetry  *consulate.Telemetry
}

func (c *cliConfig) load() (consulate.Config, error) {
	cfg := consulate.Config{
		Address:                viper.GetString("http-addr"),
		Scheme:                 viper.GetString("scheme"),
		Datacenter:             viper.GetString("datacenter"),
		Token:                  viper.GetString("token"),
		TokenFile:              viper.GetString("token-file"),
		Namespace:              viper.GetString("namespace"),
		Partition:              viper.GetString("partition"),
		WaitCeiling:            viper.GetDuration("wait-ceiling"),
		HTTPTimeout:            viper.GetDuration("http-timeout"),
		LogLevel:               viper.GetString("log-level"),
		LogOutput:              viper.GetString("log-output"),
		OTLPEndpoint:           viper.GetString("otlp-endpoint"),
		MetricsListen:          viper.GetString("metrics-listen"),
		PprofListen:            viper.GetString("pprof-listen"),
		EnableProfilingMetrics: viper.GetBool("enable-profiling-metrics"),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *cliConfig) setupLogger(cfg consulate.Config) error {
	switch cfg.LogLevel {
	case "", "none", "disabled", "off":
		c.logger = nil
		return nil
	}
	level, ok := pslog.ParseLevel(cfg.LogLevel)
	if !ok {
		return fmt.Errorf("invalid client log level %q", cfg.LogLevel)
	}
	if level == pslog.NoLevel || level == pslog.Disabled {
		c.logger = nil
		return nil
	}
	var writer io.Writer = os.Stderr
	switch cfg.LogOutput {
	case "", "stderr":
	case "-", "stdout":
		writer = os.Stdout
	default:
		f, err := os.OpenFile(cfg.LogOutput, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		c.logClosers = append(c.logClosers, f)
		writer = f
	}
	c.logger = svcfields.WithSubsystem(pslog.NewStructured(context.Background(), writer), "client.cli").LogLevel(level)
	return nil
}

func (c *cliConfig) cleanup(ctx context.Context) {
	if c.telemetry != nil {
		if err := c.telemetry.Shutdown(ctx); err != nil {
			svcfields.WithSubsystem(c.baseLogger, "cli.telemetry").Warn("telemetry shutdown failed", "error", err)
		}
		c.telemetry = nil
	}
	for _, closer := range c.logClosers {
		_ = closer.Close()
	}
	c.logClosers = nil
	c.logger = nil
}

// run loads the configuration, starts telemetry when configured and hands a
// ready client to fn. Everything is torn down when fn returns.
func (c *cliConfig) run(cmd *cobra.Command, fn func(ctx context.Context, cli *client.Client) error) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	ctx, _ := commandContextWithCorrelation(cmd)
	defer c.cleanup(context.WithoutCancel(ctx))
	if err := c.setupLogger(cfg); err != nil {
		return err
	}
	if cfg.TelemetryEnabled() {
		tel, err := consulate.SetupTelemetry(ctx, cfg, svcfields.WithSubsystem(c.baseLogger, "cli.telemetry"))
		if err != nil {
			return err
		}
		c.telemetry = tel
	}
	var opts []client.Option
	if c.logger != nil {
		opts = append(opts, client.WithLogger(c.logger))
	}
	cli, err := client.New(cfg.ClientConfig(), opts...)
	if err != nil {
		return err
	}
	defer cli.Close()
	return fn(ctx, cli)
}

// queryOptions maps the persistent --consistency flag onto per-call options.
func queryOptions() (query.Options, error) {
	consistency, err := query.ParseConsistency(viper.GetString("consistency"))
	if err != nil {
		return query.Options{}, err
	}
	return query.Options{Consistency: consistency}, nil
}

func resolveCorrelationID() string {
	if env := strings.TrimSpace(os.Getenv(envCorrelation)); env != "" {
		if normalized, ok := client.NormalizeCorrelationID(env); ok {
			return normalized
		}
	}
	return client.GenerateCorrelationID()
}

func commandContextWithCorrelation(cmd *cobra.Command) (context.Context, string) {
	id := resolveCorrelationID()
	ctx := client.WithCorrelationID(cmd.Context(), id)
	return ctx, id
}
