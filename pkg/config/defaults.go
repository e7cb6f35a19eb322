package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress         = "127.0.0.1:8443"
	DefaultMaxConnections        = 1000
	DefaultMaxConcurrentRequests = 100
	DefaultMaxRequestSizeMB      = 10
	DefaultReadTimeout           = 30 * time.Second
	DefaultIdleTimeout           = 120 * time.Second
	DefaultShutdownTimeout       = 30 * time.Second
	DefaultMaxHeaderBytes        = 1048576 // 1MB
	DefaultServerTLSMinVersion   = "1.2"

	// Upstream defaults
	DefaultUpstreamTimeout    = 60 * time.Second
	DefaultConnectTimeout     = 10 * time.Second
	DefaultPoolMaxIdleConns   = 10
	DefaultPoolIdleConnTimeout = 90 * time.Second

	// Client TLS defaults
	DefaultReloadDebounce = 500 * time.Millisecond

	// Rate limit defaults
	DefaultRateLimitRPS   = 100.0
	DefaultRateLimitBurst = 200

	// Traffic log defaults
	DefaultTrafficDBPath      = "logs/traffic.db"
	DefaultTrafficAsyncBuffer = 1000
	DefaultRetentionDays      = 30
	DefaultRetentionSchedule  = "0 3 * * *"

	// Audit defaults
	DefaultAuditDBPath = "logs/audit.db"

	// Admin defaults
	DefaultAdminCertDir = "certs"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "ganymede"
	DefaultMetricsSubsystem   = "proxy"
	DefaultTracingExporter    = "otlp"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "ganymede"
	DefaultLivenessPath       = "/health"
	DefaultReadinessPath      = "/ready"
	DefaultVersionPath        = "/version"
)

// DefaultRequestDurationBuckets are the histogram buckets, in seconds, used
// for request duration observations when no override is configured.
var DefaultRequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Enabled-by-default sections are resolved before anything else fills in
	// their sibling fields, because "section left entirely empty" is the
	// signal that the operator wants the default behavior.
	applyEnabledDefaults(cfg)

	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.MaxConnections == 0 {
		cfg.Server.MaxConnections = DefaultMaxConnections
	}
	if cfg.Server.MaxConcurrentRequests == 0 {
		cfg.Server.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}
	if cfg.Server.MaxRequestSizeMB == 0 {
		cfg.Server.MaxRequestSizeMB = DefaultMaxRequestSizeMB
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultServerTLSMinVersion
	}

	// Upstream defaults
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.Upstream.Pool.MaxIdleConns == 0 {
		cfg.Upstream.Pool.MaxIdleConns = DefaultPoolMaxIdleConns
	}
	if cfg.Upstream.Pool.IdleConnTimeout == 0 {
		cfg.Upstream.Pool.IdleConnTimeout = DefaultPoolIdleConnTimeout
	}

	// Client TLS defaults
	if cfg.ClientTLS.Reload.Debounce == 0 {
		cfg.ClientTLS.Reload.Debounce = DefaultReloadDebounce
	}

	// Rate limit defaults
	if cfg.Limits.RateLimit.RequestsPerSecond == 0 {
		cfg.Limits.RateLimit.RequestsPerSecond = DefaultRateLimitRPS
	}
	if cfg.Limits.RateLimit.BurstSize == 0 {
		cfg.Limits.RateLimit.BurstSize = DefaultRateLimitBurst
	}

	// Traffic log defaults
	if cfg.Traffic.DBPath == "" {
		cfg.Traffic.DBPath = DefaultTrafficDBPath
	}
	if cfg.Traffic.AsyncBuffer == 0 {
		cfg.Traffic.AsyncBuffer = DefaultTrafficAsyncBuffer
	}
	if cfg.Traffic.Retention.Days == 0 {
		cfg.Traffic.Retention.Days = DefaultRetentionDays
	}
	if cfg.Traffic.Retention.Schedule == "" {
		cfg.Traffic.Retention.Schedule = DefaultRetentionSchedule
	}

	// Audit defaults
	if cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = DefaultAuditDBPath
	}

	// Admin defaults
	if cfg.Admin.CertDir == "" {
		cfg.Admin.CertDir = DefaultAdminCertDir
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = DefaultRequestDurationBuckets
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
}

// applyEnabledDefaults resolves Enabled fields that default to true. A bool
// zero value cannot distinguish "unset" from "explicitly false", so a section
// with no other field set is treated as unset and enabled; a section the
// operator touched keeps whatever Enabled value it carries.
func applyEnabledDefaults(cfg *Config) {
	trafficTouched := cfg.Traffic.DBPath != "" ||
		cfg.Traffic.AsyncBuffer != 0 ||
		cfg.Traffic.RedactHeaders ||
		cfg.Traffic.Retention != (RetentionConfig{})
	if !cfg.Traffic.Enabled && !trafficTouched {
		cfg.Traffic.Enabled = true
	}
	if !cfg.Traffic.RedactHeaders && !trafficTouched {
		cfg.Traffic.RedactHeaders = true
	}

	if !cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		cfg.Audit.Enabled = true
	}

	if !cfg.Admin.Enabled {
		touched := cfg.Admin.ListenAddress != "" || cfg.Admin.CertDir != ""
		if !touched {
			cfg.Admin.Enabled = true
		}
	}

	if !cfg.Telemetry.Metrics.Enabled {
		touched := cfg.Telemetry.Metrics.Path != "" ||
			cfg.Telemetry.Metrics.Namespace != "" ||
			cfg.Telemetry.Metrics.Subsystem != "" ||
			len(cfg.Telemetry.Metrics.RequestDurationBuckets) > 0
		if !touched {
			cfg.Telemetry.Metrics.Enabled = true
		}
	}

	if !cfg.Telemetry.Health.Enabled {
		touched := cfg.Telemetry.Health.LivenessPath != "" ||
			cfg.Telemetry.Health.ReadinessPath != "" ||
			cfg.Telemetry.Health.VersionPath != ""
		if !touched {
			cfg.Telemetry.Health.Enabled = true
		}
	}

	// Tracing and listen-side TLS default to disabled; their zero values are
	// already correct.
}
