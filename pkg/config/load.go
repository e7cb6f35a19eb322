package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Unknown keys in the file are ignored. The configuration is not
// modified by environment variables; use LoadConfigWithEnvOverrides for that
// functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention GANYMEDE_SECTION_FIELD (e.g., GANYMEDE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration back to a YAML file, creating parent
// directories as needed. It is used by the management API to persist config
// updates applied at runtime.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create configuration directory %q: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file %q: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format GANYMEDE_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("GANYMEDE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("GANYMEDE_SERVER_MAX_CONNECTIONS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxConnections = i
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_MAX_CONCURRENT_REQUESTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxConcurrentRequests = i
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_MAX_REQUEST_SIZE_MB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Server.MaxRequestSizeMB = i
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_IDLE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.IdleTimeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_TLS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Server.TLS.Enabled = b
		}
	}
	if val := os.Getenv("GANYMEDE_SERVER_TLS_CERT_FILE"); val != "" {
		cfg.Server.TLS.CertFile = val
	}
	if val := os.Getenv("GANYMEDE_SERVER_TLS_KEY_FILE"); val != "" {
		cfg.Server.TLS.KeyFile = val
	}

	// Upstream overrides
	if val := os.Getenv("GANYMEDE_UPSTREAM_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if val := os.Getenv("GANYMEDE_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.Timeout = d
		}
	}
	if val := os.Getenv("GANYMEDE_UPSTREAM_CONNECT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.ConnectTimeout = d
		}
	}

	// Client TLS overrides
	if val := os.Getenv("GANYMEDE_CLIENT_TLS_CERT_FILE"); val != "" {
		cfg.ClientTLS.CertFile = val
	}
	if val := os.Getenv("GANYMEDE_CLIENT_TLS_KEY_FILE"); val != "" {
		cfg.ClientTLS.KeyFile = val
	}
	if val := os.Getenv("GANYMEDE_CLIENT_TLS_CA_FILE"); val != "" {
		cfg.ClientTLS.CAFile = val
	}
	if val := os.Getenv("GANYMEDE_CLIENT_TLS_SKIP_HOSTNAME_VERIFY"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.ClientTLS.SkipHostnameVerify = b
		}
	}
	if val := os.Getenv("GANYMEDE_CLIENT_TLS_RELOAD_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.ClientTLS.Reload.Enabled = b
		}
	}

	// Limits overrides
	if val := os.Getenv("GANYMEDE_LIMITS_REQUESTS_PER_SECOND"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Limits.RateLimit.RequestsPerSecond = f
		}
	}
	if val := os.Getenv("GANYMEDE_LIMITS_BURST_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Limits.RateLimit.BurstSize = i
		}
	}

	// Traffic log overrides
	if val := os.Getenv("GANYMEDE_TRAFFIC_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Traffic.Enabled = b
		}
	}
	if val := os.Getenv("GANYMEDE_TRAFFIC_DB_PATH"); val != "" {
		cfg.Traffic.DBPath = val
	}

	// Audit overrides
	if val := os.Getenv("GANYMEDE_AUDIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Audit.Enabled = b
		}
	}
	if val := os.Getenv("GANYMEDE_AUDIT_DB_PATH"); val != "" {
		cfg.Audit.DBPath = val
	}

	// Admin overrides
	if val := os.Getenv("GANYMEDE_ADMIN_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Admin.Enabled = b
		}
	}
	if val := os.Getenv("GANYMEDE_ADMIN_LISTEN_ADDRESS"); val != "" {
		cfg.Admin.ListenAddress = val
	}

	// Telemetry overrides
	if val := os.Getenv("GANYMEDE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("GANYMEDE_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
