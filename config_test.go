package consulate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Address != DefaultAddress || cfg.Scheme != DefaultScheme {
		t.Fatalf("unexpected connection defaults: %+v", cfg)
	}
	if cfg.WaitCeiling != DefaultWaitCeiling || cfg.HTTPTimeout != DefaultHTTPTimeout {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.TelemetryEnabled() {
		t.Fatal("telemetry should be off by default")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"scheme", Config{Scheme: "ftp"}, "scheme"},
		{"ceiling", Config{WaitCeiling: -time.Second}, "wait ceiling"},
		{"log level", Config{LogLevel: "chatty"}, "log level"},
		{"otlp", Config{OTLPEndpoint: "ftp://collector"}, "otlp endpoint"},
		{"profiling", Config{EnableProfilingMetrics: true}, "metrics listen"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "config: ") || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("unexpected error %q", err)
			}
		})
	}
}

func TestConfigValidateNormalises(t *testing.T) {
	t.Setenv("CONSULATE_TEST_DIR", "/srv/secrets")
	cfg := Config{
		Address:    " https://agent.example:8501 ",
		Datacenter: " dc2 ",
		TokenFile:  "$CONSULATE_TEST_DIR/token",
		LogLevel:   " DEBUG ",
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Address != "https://agent.example:8501" || cfg.Datacenter != "dc2" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.TokenFile != "/srv/secrets/token" {
		t.Fatalf("token file = %q", cfg.TokenFile)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	cc := cfg.ClientConfig()
	if cc.Address != cfg.Address || cc.TokenFile != cfg.TokenFile || cc.WaitCeiling != DefaultWaitCeiling {
		t.Fatalf("client config = %+v", cc)
	}
}

func TestDefaultConfigDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)
	got, err := DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir: %v", err)
	}
	if got != dir {
		t.Fatalf("dir = %q, want %q", got, dir)
	}
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath: %v", err)
	}
	if path != filepath.Join(dir, DefaultConfigFileName) {
		t.Fatalf("path = %q", path)
	}

	t.Setenv(EnvConfigDir, "relative/dir")
	got, err = DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir: %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Fatalf("expected absolute path, got %q", got)
	}

	t.Setenv(EnvConfigDir, "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	got, err = DefaultConfigDir()
	if err != nil {
		t.Fatalf("DefaultConfigDir: %v", err)
	}
	if got != filepath.Join(home, ".consulate") {
		t.Fatalf("dir = %q", got)
	}
	if _, err := os.Stat(got); !os.IsNotExist(err) {
		t.Fatalf("DefaultConfigDir must not create the directory: %v", err)
	}
}
