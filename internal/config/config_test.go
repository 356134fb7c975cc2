package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dropvault/signalcore/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Server.Port != "4000" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "4000")
	}

	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want %q", cfg.Server.Environment, "development")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.Security.SweepMaxAge != 24*time.Hour {
		t.Errorf("Security.SweepMaxAge = %v, want %v", cfg.Security.SweepMaxAge, 24*time.Hour)
	}

	// Defaults (development mode) must pass validation.
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
server:
  port: "9090"
  client_url: "https://example.com"
  environment: "production"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
security:
  metadata_encryption_key: "a-production-secret"
  sweep_max_age: "12h"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9090")
	}

	if cfg.Server.ClientURL != "https://example.com" {
		t.Errorf("Server.ClientURL = %q, want %q", cfg.Server.ClientURL, "https://example.com")
	}

	if cfg.Server.Environment != "production" {
		t.Errorf("Server.Environment = %q, want %q", cfg.Server.Environment, "production")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Security.SweepMaxAge != 12*time.Hour {
		t.Errorf("Security.SweepMaxAge = %v, want %v", cfg.Security.SweepMaxAge, 12*time.Hour)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override server.port and log.level. Everything
	// else should inherit from defaults.
	yamlContent := `
server:
  port: "7000"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Server.Port != "7000" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "7000")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want default %q", cfg.Server.Environment, "development")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want default %q", cfg.Log.Format, "json")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty port",
			modify: func(cfg *config.Config) {
				cfg.Server.Port = ""
			},
			wantErr: config.ErrEmptyPort,
		},
		{
			name: "invalid environment",
			modify: func(cfg *config.Config) {
				cfg.Server.Environment = "staging"
			},
			wantErr: config.ErrInvalidEnvironment,
		},
		{
			name: "production without key",
			modify: func(cfg *config.Config) {
				cfg.Server.Environment = "production"
				cfg.Security.MetadataEncryptionKey = ""
			},
			wantErr: config.ErrProductionKeyMissing,
		},
		{
			name: "zero sweep max age",
			modify: func(cfg *config.Config) {
				cfg.Security.SweepMaxAge = 0
			},
			wantErr: config.ErrInvalidSweepMaxAge,
		},
		{
			name: "turn secret without turn server",
			modify: func(cfg *config.Config) {
				cfg.Relay.TURNSecret = "shh"
			},
			wantErr: config.ErrTURNSecretWithoutServer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateProductionWithKey(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.MetadataEncryptionKey = "a64hexdigitkeyoranypassphraseatall"

	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() with key set returned error: %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadNonexistentFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load("/nonexistent/path/config.yml")
	if err == nil {
		t.Fatal("Load() returned nil error for nonexistent file")
	}
}

func TestLoadEmptyPathSkipsFile(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}

	if cfg.Server.Port != "4000" {
		t.Errorf("Server.Port = %q, want default %q", cfg.Server.Port, "4000")
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverridesBareNames(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
server:
  port: "8080"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("PORT", "6000")
	t.Setenv("CLIENT_URL", "https://dropvault.example")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("METADATA_ENCRYPTION_KEY", "env-supplied-secret")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Server.Port != "6000" {
		t.Errorf("Server.Port = %q, want %q (from env)", cfg.Server.Port, "6000")
	}

	if cfg.Server.ClientURL != "https://dropvault.example" {
		t.Errorf("Server.ClientURL = %q, want %q (from env)", cfg.Server.ClientURL, "https://dropvault.example")
	}

	if cfg.Server.Environment != "production" {
		t.Errorf("Server.Environment = %q, want %q (from env)", cfg.Server.Environment, "production")
	}

	if cfg.Security.MetadataEncryptionKey != "env-supplied-secret" {
		t.Errorf("Security.MetadataEncryptionKey = %q, want %q (from env)", cfg.Security.MetadataEncryptionKey, "env-supplied-secret")
	}
}

func TestLoadEnvOverridesNamespaced(t *testing.T) {
	yamlContent := `
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("SIGNALCORE_METRICS_ADDR", ":9200")
	t.Setenv("SIGNALCORE_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "signalcore.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
