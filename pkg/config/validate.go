package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "upstream.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together. A configuration
// that fails validation must never reach the forwarding path.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateClientTLS(&cfg.ClientTLS)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateTraffic(&cfg.Traffic)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateListenAddress checks a host:port string and its port range.
func validateListenAddress(field, addr string) []FieldError {
	if addr == "" {
		return []FieldError{{Field: field, Message: "listen address is required"}}
	}

	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("invalid listen address %q: expected host:port", addr),
		}}
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("invalid port %q: must be between 1 and 65535", portStr),
		}}
	}

	return nil
}

// validateServer validates the listener configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	errs = append(errs, validateListenAddress("server.listen_address", cfg.ListenAddress)...)

	if cfg.MaxConnections <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_connections",
			Message: "max connections must be greater than zero",
		})
	}
	if cfg.MaxConcurrentRequests <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_concurrent_requests",
			Message: "max concurrent requests must be greater than zero",
		})
	}
	if cfg.MaxRequestSizeMB <= 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_request_size_mb",
			Message: "max request size must be greater than zero",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must not be negative",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must not be negative",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must not be negative",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	// Listen-side TLS
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.cert_file",
				Message: "TLS certificate file is required when listener TLS is enabled",
			})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{
				Field:   "server.tls.key_file",
				Message: "TLS key file is required when listener TLS is enabled",
			})
		}
	}
	if cfg.TLS.MinVersion != "" {
		switch cfg.TLS.MinVersion {
		case "1.2", "1.3":
		default:
			errs = append(errs, FieldError{
				Field:   "server.tls.min_version",
				Message: fmt.Sprintf("invalid TLS version %q: must be '1.2' or '1.3'", cfg.TLS.MinVersion),
			})
		}
	}

	return errs
}

// validateUpstream validates the upstream target configuration.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.base_url",
			Message: "base URL is required",
		})
	} else {
		u, err := url.Parse(cfg.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, FieldError{
				Field:   "upstream.base_url",
				Message: fmt.Sprintf("invalid URL format: %v", err),
			})
		case u.Scheme != "https":
			errs = append(errs, FieldError{
				Field:   "upstream.base_url",
				Message: fmt.Sprintf("scheme %q is not allowed: the upstream connection must use https", u.Scheme),
			})
		case u.Host == "":
			errs = append(errs, FieldError{
				Field:   "upstream.base_url",
				Message: "URL has no host",
			})
		}
	}

	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout",
			Message: "timeout must be greater than zero",
		})
	}
	if cfg.ConnectTimeout <= 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.connect_timeout",
			Message: "connect timeout must be greater than zero",
		})
	}
	if cfg.Pool.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.pool.max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}
	if cfg.Pool.IdleConnTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.pool.idle_conn_timeout",
			Message: "idle connection timeout must be positive",
		})
	}

	return errs
}

// validateClientTLS validates the upstream client identity configuration.
// File existence is checked here so that a bad path fails at load rather than
// at the first forwarded request; the identity loader re-checks with typed
// errors when it actually reads the files.
func validateClientTLS(cfg *ClientTLSConfig) []FieldError {
	var errs []FieldError

	if cfg.CertFile == "" {
		errs = append(errs, FieldError{
			Field:   "client_tls.cert_file",
			Message: "client certificate file is required",
		})
	} else if _, err := os.Stat(cfg.CertFile); err != nil {
		errs = append(errs, FieldError{
			Field:   "client_tls.cert_file",
			Message: fmt.Sprintf("certificate file not accessible: %v", err),
		})
	}

	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{
			Field:   "client_tls.key_file",
			Message: "client key file is required",
		})
	} else if _, err := os.Stat(cfg.KeyFile); err != nil {
		errs = append(errs, FieldError{
			Field:   "client_tls.key_file",
			Message: fmt.Sprintf("key file not accessible: %v", err),
		})
	}

	if cfg.CAFile != "" {
		if _, err := os.Stat(cfg.CAFile); err != nil {
			errs = append(errs, FieldError{
				Field:   "client_tls.ca_file",
				Message: fmt.Sprintf("CA file not accessible: %v", err),
			})
		}
	}

	if cfg.Reload.Debounce < 0 {
		errs = append(errs, FieldError{
			Field:   "client_tls.reload.debounce",
			Message: "debounce must not be negative",
		})
	}

	return errs
}

// validateLimits validates admission control configuration.
func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	if cfg.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.rate_limit.requests_per_second",
			Message: "requests per second must be greater than zero",
		})
	}
	if cfg.RateLimit.RequestsPerSecond > 100000 {
		errs = append(errs, FieldError{
			Field:   "limits.rate_limit.requests_per_second",
			Message: "requests per second exceeds reasonable limit (100,000)",
		})
	}
	if cfg.RateLimit.BurstSize <= 0 {
		errs = append(errs, FieldError{
			Field:   "limits.rate_limit.burst_size",
			Message: "burst size must be greater than zero",
		})
	}

	return errs
}

// validateTraffic validates traffic log configuration.
func validateTraffic(cfg *TrafficConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.DBPath == "" {
		errs = append(errs, FieldError{
			Field:   "traffic.db_path",
			Message: "database path is required when the traffic log is enabled",
		})
	}
	if cfg.AsyncBuffer < 0 {
		errs = append(errs, FieldError{
			Field:   "traffic.async_buffer",
			Message: "async buffer must be non-negative",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "traffic.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.Days > 3650 { // 10 years is excessive
		errs = append(errs, FieldError{
			Field:   "traffic.retention.days",
			Message: "retention days exceeds reasonable limit (3650 days / 10 years)",
		})
	}
	if cfg.Retention.Days > 0 && cfg.Retention.Schedule == "" {
		errs = append(errs, FieldError{
			Field:   "traffic.retention.schedule",
			Message: "schedule is required when retention pruning is enabled",
		})
	}

	return errs
}

// validateAudit validates audit trail configuration.
func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Enabled && cfg.DBPath == "" {
		errs = append(errs, FieldError{
			Field:   "audit.db_path",
			Message: "database path is required when the audit trail is enabled",
		})
	}

	return errs
}

// validateAdmin validates the management surface configuration.
func validateAdmin(cfg *AdminConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	if cfg.ListenAddress != "" {
		errs = append(errs, validateListenAddress("admin.listen_address", cfg.ListenAddress)...)
	}
	if cfg.CertDir == "" {
		errs = append(errs, FieldError{
			Field:   "admin.cert_dir",
			Message: "certificate directory is required when the management surface is enabled",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	// Logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	// Logging format
	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	// Metrics
	if cfg.Metrics.Enabled && cfg.Metrics.Path == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path is required when metrics are enabled",
		})
	}
	if cfg.Metrics.Path != "" && cfg.Metrics.Path[0] != '/' {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	// Tracing
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "tracing endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.Exporter != "otlp" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.exporter",
				Message: fmt.Sprintf("unsupported exporter %q: only 'otlp' is supported", cfg.Tracing.Exporter),
			})
		}
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	// Health paths
	if cfg.Health.Enabled {
		for _, p := range []struct {
			field, value string
		}{
			{"telemetry.health.liveness_path", cfg.Health.LivenessPath},
			{"telemetry.health.readiness_path", cfg.Health.ReadinessPath},
			{"telemetry.health.version_path", cfg.Health.VersionPath},
		} {
			if p.value == "" {
				errs = append(errs, FieldError{
					Field:   p.field,
					Message: "path is required when health endpoints are enabled",
				})
			} else if p.value[0] != '/' {
				errs = append(errs, FieldError{
					Field:   p.field,
					Message: "path must start with /",
				})
			}
		}
	}

	return errs
}
