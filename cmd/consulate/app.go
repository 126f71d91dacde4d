package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"pkt.systems/consulate"
	"pkt.systems/consulate/internal/pathutil"
	"pkt.systems/consulate/query"
	"pkt.systems/pslog"
)

func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("CONSULATE_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "consulate")
	cmd := newRootCommand(baseLogger)
	ctx = withSignalCancel(ctx)
	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return exitCode(err)
	}
	return 0
}

// exitCode maps policy outcomes (missing, already present) to their own exit
// codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, query.ErrNotFound):
		return 2
	case errors.Is(err, query.ErrAlreadyExists):
		return 3
	default:
		return 1
	}
}

func loadConfigFile() (string, error) {
	cfgPath := strings.TrimSpace(viper.GetString("config"))
	explicit := cfgPath != ""

	if cfgPath == "" {
		if candidate, err := consulate.DefaultConfigPath(); err == nil {
			if _, err := os.Stat(candidate); err == nil {
				cfgPath = candidate
			}
		}
	}

	if cfgPath == "" {
		return "", nil
	}

	expanded, err := pathutil.Resolve(cfgPath)
	if err != nil {
		return "", fmt.Errorf("expand config path %q: %w", cfgPath, err)
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %q: %w", expanded, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("config file %q is a directory", expanded)
	}

	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %q: %w", expanded, err)
	}
	return expanded, nil
}

func mustBindFlag(key string, flag *pflag.Flag, envs ...string) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if len(envs) > 0 {
		if err := viper.BindEnv(append([]string{key}, envs...)...); err != nil {
			panic(err)
		}
	}
}

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	viper.Reset()
	cli := &cliConfig{baseLogger: baseLogger}

	cmd := &cobra.Command{
		Use:           "consulate",
		Short:         "consulate reads and writes a Consul-style agent using blocking queries and declared resolution policies",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Read a key, failing if it does not exist
  consulate kv get app/config

  # Wait up to a minute for somebody to write the key
  consulate kv get app/config --not-found wait --wait 1m

  # Store YAML as JSON and read it back as YAML
  consulate kv put app/config --type yaml --file config.yaml
  consulate kv get app/config --type yaml

  # Follow deploy events as they are fired
  consulate event get deploy --cursor :next --not-found wait --follow

  # Take a lock, waiting up to five minutes for the current holder
  consulate lock acquire jobs/nightly --wait 5m -o json
`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfigFile(); err != nil {
				return err
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringP("config", "c", "", "path to YAML config file (defaults to $HOME/.consulate/config.yaml when present)")
	flags.StringP("http-addr", "a", consulate.DefaultAddress, "agent address (host:port, http(s)://host:port or unix:///path)")
	flags.String("scheme", consulate.DefaultScheme, "scheme used when --http-addr has none (http|https)")
	flags.String("token", "", "ACL token sent with every request")
	flags.String("token-file", "", "file holding the ACL token (ignored when --token is set)")
	flags.String("datacenter", "", "datacenter to query (agent default when empty)")
	flags.String("namespace", "", "namespace to query")
	flags.String("partition", "", "admin partition to query")
	flags.Duration("wait-ceiling", consulate.DefaultWaitCeiling, "upper bound for any single blocking read")
	flags.Duration("http-timeout", consulate.DefaultHTTPTimeout, "timeout for requests that are not blocking reads")
	flags.String("consistency", "", "read consistency (default|stale|consistent)")
	flags.String("log-level", consulate.DefaultLogLevel, "client log level (none|trace|debug|info|warn|error)")
	flags.String("log-output", "", "client log destination (stderr|stdout|path)")
	flags.StringP("output", "o", string(outputText), "output format (text|json|yaml)")
	flags.String("otlp-endpoint", "", "OTLP collector endpoint for traces (grpc://, grpcs://, http://, https://)")
	flags.String("metrics-listen", consulate.DefaultMetricsListen, "serve Prometheus metrics on this address while the command runs")
	flags.String("pprof-listen", consulate.DefaultPprofListen, "serve net/http/pprof on this address while the command runs")
	flags.Bool("enable-profiling-metrics", false, "add Go runtime metrics to the metrics endpoint")

	viper.SetEnvPrefix(consulate.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	mustBindFlag("config", flags.Lookup("config"))
	mustBindFlag("http-addr", flags.Lookup("http-addr"), consulate.EnvHTTPAddr)
	mustBindFlag("scheme", flags.Lookup("scheme"))
	mustBindFlag("token", flags.Lookup("token"), consulate.EnvHTTPToken)
	mustBindFlag("token-file", flags.Lookup("token-file"), consulate.EnvTokenFile)
	mustBindFlag("datacenter", flags.Lookup("datacenter"), consulate.EnvDatacenter)
	mustBindFlag("namespace", flags.Lookup("namespace"), consulate.EnvNamespace)
	mustBindFlag("partition", flags.Lookup("partition"), consulate.EnvPartition)
	mustBindFlag("wait-ceiling", flags.Lookup("wait-ceiling"))
	mustBindFlag("http-timeout", flags.Lookup("http-timeout"))
	mustBindFlag("consistency", flags.Lookup("consistency"))
	mustBindFlag("log-level", flags.Lookup("log-level"))
	mustBindFlag("log-output", flags.Lookup("log-output"))
	mustBindFlag("output", flags.Lookup("output"))
	mustBindFlag("otlp-endpoint", flags.Lookup("otlp-endpoint"))
	mustBindFlag("metrics-listen", flags.Lookup("metrics-listen"))
	mustBindFlag("pprof-listen", flags.Lookup("pprof-listen"))
	mustBindFlag("enable-profiling-metrics", flags.Lookup("enable-profiling-metrics"))

	cmd.AddCommand(
		newKVCommand(cli),
		newEventCommand(cli),
		newSessionCommand(cli),
		newLockCommand(cli),
		newCatalogCommand(cli),
		newHealthCommand(cli),
		newACLCommand(cli),
		newStatusCommand(cli),
		newConfigCommand(),
		newVersionCommand(),
	)
	return cmd
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}
