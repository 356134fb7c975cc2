// Package config manages signalcore daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete signalcore daemon configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Security SecurityConfig `koanf:"security"`
	Relay    RelayConfig    `koanf:"relay"`
}

// ServerConfig holds the HTTP/WebSocket boundary adapter configuration
// (§4.M, §6).
type ServerConfig struct {
	// Port is the HTTP/WS listen port. Mirrors the PORT env var (§6).
	Port string `koanf:"port"`
	// ClientURL is the browser origin allowed by CORS. Mirrors CLIENT_URL.
	ClientURL string `koanf:"client_url"`
	// Environment is "development" or "production". Mirrors NODE_ENV; in
	// production, METADATA_ENCRYPTION_KEY MUST be set (§4.B).
	Environment string `koanf:"environment"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// SecurityConfig holds the Field Encryption key and the session-lifecycle
// tuning knobs used across the Validator, Limiter, Abuse Guard, and
// Concurrency Cap (§4.B-F).
type SecurityConfig struct {
	// MetadataEncryptionKey configures the Field Cipher. Mirrors
	// METADATA_ENCRYPTION_KEY: may be empty in development (the daemon then
	// uses a fixed all-zero development key), required in production, either a 64 hex-char AES-256 key or an
	// arbitrary passphrase run through scrypt (§4.B).
	MetadataEncryptionKey string `koanf:"metadata_encryption_key"`

	// SweepMaxAge is how old a repository row or registration may get
	// before the Sweeper reclaims it (§4.N).
	SweepMaxAge time.Duration `koanf:"sweep_max_age"`
}

// RelayConfig holds the TURN/STUN relay configuration (§4.I, §6 env vars
// TURN_SERVER, TURN_SECRET, TURNS_ENABLED).
type RelayConfig struct {
	STUNURL       string        `koanf:"stun_url"`
	TURNServer    string        `koanf:"turn_server"`
	TURNSecret    string        `koanf:"turn_secret"`
	TURNSEnabled  bool          `koanf:"turns_enabled"`
	CredentialTTL time.Duration `koanf:"credential_ttl"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults (§4 across
// all components, §6 env var defaults).
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "4000",
			ClientURL:   "http://localhost:5173",
			Environment: "development",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			MetadataEncryptionKey: "",
			SweepMaxAge:           24 * time.Hour,
		},
		Relay: RelayConfig{
			STUNURL:       "stun:stun.l.google.com:19302",
			CredentialTTL: 24 * time.Hour,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix namespaces settings that the external spec for this daemon
// doesn't name directly (e.g. SIGNALCORE_METRICS_ADDR -> metrics.addr). The
// seven bare names the daemon's documented deployment contract uses -- PORT,
// CLIENT_URL, NODE_ENV, METADATA_ENCRYPTION_KEY, TURN_SERVER, TURN_SECRET,
// TURNS_ENABLED -- are mapped explicitly in bareEnvMap so operators can set
// them without the prefix.
const envPrefix = "SIGNALCORE_"

// bareEnvMap maps the daemon's documented bare environment variable names
// (§6) directly onto koanf dotted keys, bypassing the SIGNALCORE_ prefix
// convention.
var bareEnvMap = map[string]string{
	"PORT":                    "server.port",
	"CLIENT_URL":              "server.client_url",
	"NODE_ENV":                "server.environment",
	"METADATA_ENCRYPTION_KEY": "security.metadata_encryption_key",
	"TURN_SERVER":             "relay.turn_server",
	"TURN_SECRET":             "relay.turn_secret",
	"TURNS_ENABLED":           "relay.turns_enabled",
}

// Load reads configuration from a YAML file at path (if non-empty),
// overlays environment variable overrides, and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	// No provider-level prefix filter: envValueMapper itself selects both the
	// bare names and the SIGNALCORE_ namespace and drops everything else.
	if err := k.Load(env.ProviderWithValue("", ".", envValueMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envValueMapper maps both the daemon's bare env var names (§6) and the
// SIGNALCORE_-prefixed namespace onto koanf dotted keys. Unrecognized bare
// names (neither in bareEnvMap nor SIGNALCORE_-prefixed) are ignored.
func envValueMapper(key, value string) (string, any) {
	if mapped, ok := bareEnvMap[key]; ok {
		return mapped, value
	}
	if !strings.HasPrefix(key, envPrefix) {
		return "", nil
	}
	trimmed := strings.TrimPrefix(key, envPrefix)
	return strings.ReplaceAll(strings.ToLower(trimmed), "_", "."), value
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"server.port":                      defaults.Server.Port,
		"server.client_url":                defaults.Server.ClientURL,
		"server.environment":               defaults.Server.Environment,
		"metrics.addr":                     defaults.Metrics.Addr,
		"metrics.path":                     defaults.Metrics.Path,
		"log.level":                        defaults.Log.Level,
		"log.format":                       defaults.Log.Format,
		"security.metadata_encryption_key": defaults.Security.MetadataEncryptionKey,
		"security.sweep_max_age":           defaults.Security.SweepMaxAge.String(),
		"relay.stun_url":                   defaults.Relay.STUNURL,
		"relay.credential_ttl":             defaults.Relay.CredentialTTL.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	ErrEmptyPort               = errors.New("server.port must not be empty")
	ErrInvalidEnvironment      = errors.New("server.environment must be development or production")
	ErrProductionKeyMissing    = errors.New("security.metadata_encryption_key is required when server.environment is production")
	ErrInvalidSweepMaxAge      = errors.New("security.sweep_max_age must be > 0")
	ErrTURNSecretWithoutServer = errors.New("relay.turn_secret requires relay.turn_server to be set")
)

// ValidEnvironments lists the recognized server.environment values.
var ValidEnvironments = map[string]bool{
	"development": true,
	"production":  true,
}

// Validate checks the configuration for logical errors, mirroring §4.B's
// "production key required" invariant.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return ErrEmptyPort
	}

	if !ValidEnvironments[cfg.Server.Environment] {
		return ErrInvalidEnvironment
	}

	if cfg.Server.Environment == "production" && cfg.Security.MetadataEncryptionKey == "" {
		return ErrProductionKeyMissing
	}

	if cfg.Security.SweepMaxAge <= 0 {
		return ErrInvalidSweepMaxAge
	}

	if cfg.Relay.TURNSecret != "" && cfg.Relay.TURNServer == "" {
		return ErrTURNSecretWithoutServer
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
