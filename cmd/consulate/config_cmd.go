package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pkt.systems/consulate"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage consulate configuration files",
	}
	cmd.AddCommand(newConfigGenCommand())
	return cmd
}

func newConfigGenCommand() *cobra.Command {
	var outPath string
	var force bool
	var stdout bool
	defaultOutput := "$HOME/.consulate/config.yaml"
	if path, err := consulate.DefaultConfigPath(); err == nil {
		defaultOutput = path
	}

	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a default consulate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if stdout && outPath != "" {
				return fmt.Errorf("--stdout and --out are mutually exclusive")
			}
			if outPath == "" {
				path, err := consulate.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("resolve config dir: %w", err)
				}
				outPath = path
			}

			data, err := defaultConfigYAML()
			if err != nil {
				return err
			}

			if stdout {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("config file %s already exists (use --force to overwrite)", outPath)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat config file: %w", err)
				}
			}
			if err := os.WriteFile(outPath, data, 0o600); err != nil {
				return fmt.Errorf("write config file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", fmt.Sprintf("output path for generated config (defaults to %s)", defaultOutput))
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the target file if it already exists")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the config to stdout instead of writing a file")
	return cmd
}

// configDefaults mirrors the persistent flags; keys match the flag names so
// viper reads the file without translation.
type configDefaults struct {
	HTTPAddr               string `yaml:"http-addr"`
	Scheme                 string `yaml:"scheme"`
	Token                  string `yaml:"token"`
	TokenFile              string `yaml:"token-file"`
	Datacenter             string `yaml:"datacenter"`
	Namespace              string `yaml:"namespace"`
	Partition              string `yaml:"partition"`
	WaitCeiling            string `yaml:"wait-ceiling"`
	HTTPTimeout            string `yaml:"http-timeout"`
	Consistency            string `yaml:"consistency"`
	LogLevel               string `yaml:"log-level"`
	LogOutput              string `yaml:"log-output"`
	Output                 string `yaml:"output"`
	OTLPEndpoint           string `yaml:"otlp-endpoint"`
	MetricsListen          string `yaml:"metrics-listen"`
	PprofListen            string `yaml:"pprof-listen"`
	EnableProfilingMetrics bool   `yaml:"enable-profiling-metrics"`
}

func defaultConfigYAML(overrides ...func(*configDefaults)) ([]byte, error) {
	defaults := configDefaults{
		HTTPAddr:      consulate.DefaultAddress,
		Scheme:        consulate.DefaultScheme,
		WaitCeiling:   consulate.DefaultWaitCeiling.String(),
		HTTPTimeout:   consulate.DefaultHTTPTimeout.String(),
		Consistency:   "default",
		LogLevel:      consulate.DefaultLogLevel,
		Output:        string(outputText),
		MetricsListen: consulate.DefaultMetricsListen,
		PprofListen:   consulate.DefaultPprofListen,
	}
	for _, fn := range overrides {
		if fn != nil {
			fn(&defaults)
		}
	}

	out, err := yaml.Marshal(&defaults)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}
