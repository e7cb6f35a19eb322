package config

import "time"

// Config is the root configuration structure for Mercator Ganymede.
// It contains all configuration sections for the proxy listener, the single
// upstream target, the client TLS identity used to authenticate to that
// target, admission limits, traffic logging, audit logging, the management
// surface, and telemetry.
type Config struct {
	// Server contains the inbound HTTP(S) listener configuration including
	// listen address, optional listen-side TLS, timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Upstream describes the single backend service all proxy traffic is
	// forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// ClientTLS contains the client certificate identity presented to the
	// upstream during the mutual TLS handshake.
	ClientTLS ClientTLSConfig `yaml:"client_tls"`

	// Limits contains admission control configuration (rate limiting).
	// Concurrency and body-size ceilings live under Server.
	Limits LimitsConfig `yaml:"limits"`

	// Traffic contains configuration for the request/response traffic log.
	Traffic TrafficConfig `yaml:"traffic"`

	// Audit contains configuration for the management-operation audit trail.
	Audit AuditConfig `yaml:"audit"`

	// Admin contains configuration for the management API and dashboard.
	Admin AdminConfig `yaml:"admin"`

	// Telemetry contains configuration for observability including logging,
	// metrics, distributed tracing, and health endpoints.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the inbound proxy listener.
type ServerConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8443", "0.0.0.0:8443").
	// Default: "127.0.0.1:8443"
	ListenAddress string `yaml:"listen_address"`

	// TLS configures optional TLS on the listening side. Inbound clients are
	// never required to present a certificate; mutual TLS applies only to the
	// upstream connection.
	TLS ServerTLSConfig `yaml:"tls"`

	// MaxConnections caps the number of simultaneously accepted inbound
	// connections. Connections beyond the cap wait in the kernel accept queue.
	// Default: 1000
	MaxConnections int `yaml:"max_connections"`

	// MaxConcurrentRequests caps the number of requests that may be between
	// upstream connect and response completion at once. Requests above the
	// ceiling are rejected with 503 before any upstream work is performed.
	// Default: 100
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`

	// MaxRequestSizeMB is the largest request body, in megabytes, accepted
	// for forwarding. Larger bodies are rejected with 413. Bodies without a
	// declared length are enforced while streaming.
	// Default: 10
	MaxRequestSizeMB int `yaml:"max_request_size_mb"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Zero disables it; the default leaves it unset because the
	// forwarder enforces its own end-to-end deadline and long streaming
	// responses must not be cut by the listener.
	// Default: 0 (disabled)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// If requests are still in-flight after this timeout, the server will
	// force shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values, including the
	// request line. It does not limit the size of the request body.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// ServerTLSConfig contains TLS settings for the listening side.
type ServerTLSConfig struct {
	// Enabled controls whether the proxy terminates TLS on inbound connections.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM server certificate presented to inbound
	// clients. Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM private key for CertFile.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum accepted TLS version: "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`
}

// UpstreamConfig describes the single upstream target.
type UpstreamConfig struct {
	// BaseURL is the base URL of the upstream service. Inbound request paths
	// are appended to its path component. The scheme must be https: the whole
	// point of this proxy is an authenticated TLS channel to the target.
	// Example: "https://api.internal:8443/v1"
	BaseURL string `yaml:"base_url"`

	// Timeout is the end-to-end deadline for a forwarded request, covering
	// connect, send, response wait, and response streaming.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// ConnectTimeout bounds the TCP dial plus TLS handshake to the upstream.
	// It is always shorter than or equal to Timeout in effect because the
	// end-to-end deadline also covers connection establishment.
	// Default: 10s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Pool configures reuse of established upstream connections.
	Pool PoolConfig `yaml:"pool"`
}

// PoolConfig configures the upstream connection pool.
type PoolConfig struct {
	// MaxIdleConns is the number of idle upstream connections kept for reuse.
	// Default: 10
	MaxIdleConns int `yaml:"max_idle_conns"`

	// IdleConnTimeout is how long an idle connection is kept before closing.
	// Default: 90s
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// ClientTLSConfig contains the client certificate identity used to
// authenticate the proxy to the upstream.
type ClientTLSConfig struct {
	// CertFile is the path to the PEM client certificate (chain) presented
	// during the upstream handshake. Required.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM private key for CertFile. Required.
	KeyFile string `yaml:"key_file"`

	// CAFile is an optional path to a PEM CA certificate trusted for
	// validating the upstream's server certificate. When set, it is added on
	// top of the system trust roots rather than replacing them.
	CAFile string `yaml:"ca_file"`

	// SkipHostnameVerify disables the hostname-matches-SAN check on the
	// upstream certificate. Chain-of-trust validation still applies. This is
	// an explicit opt-in escape hatch for self-signed or local test
	// upstreams and must never be enabled against production targets.
	// Default: false
	SkipHostnameVerify bool `yaml:"skip_hostname_verify"`

	// Reload configures hot reloading of the identity when the certificate
	// files change on disk.
	Reload CertReloadConfig `yaml:"reload"`
}

// CertReloadConfig configures filesystem-watch driven identity reloads.
type CertReloadConfig struct {
	// Enabled controls whether certificate files are watched for changes.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Debounce is how long to wait after the last filesystem event before
	// reloading, so that multi-file updates (cert then key) are picked up as
	// one swap.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`
}

// LimitsConfig contains admission control configuration.
type LimitsConfig struct {
	// RateLimit configures the global token-bucket admission gate.
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig configures the token-bucket rate limiter. The limiter is
// per-process and global: the proxy has no notion of per-client identity.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained admission rate (token refill rate).
	// Default: 100
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// BurstSize is the bucket capacity: the number of requests admitted
	// instantaneously from a full bucket. Zero is invalid.
	// Default: 200
	BurstSize int `yaml:"burst_size"`
}

// TrafficConfig contains configuration for the request/response traffic log.
type TrafficConfig struct {
	// Enabled controls whether proxied requests and responses are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database file that traffic records are written to.
	// Default: "logs/traffic.db"
	DBPath string `yaml:"db_path"`

	// AsyncBuffer is the size of the in-memory record queue between the
	// forwarding path and the storage writer. When the queue is full, records
	// are dropped rather than delaying requests.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// RedactHeaders controls whether credential-bearing header values
	// (Authorization, Proxy-Authorization, Cookie) are redacted before
	// records are persisted.
	// Default: true
	RedactHeaders bool `yaml:"redact_headers"`

	// Retention configures pruning of old traffic records.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig configures scheduled pruning of traffic records.
type RetentionConfig struct {
	// Days is how many days of traffic records to keep. Zero disables pruning.
	// Default: 30
	Days int `yaml:"days"`

	// Schedule is a standard 5-field cron expression for when pruning runs.
	// Default: "0 3 * * *" (daily at 03:00)
	Schedule string `yaml:"schedule"`

	// Vacuum controls whether the database file is compacted after pruning.
	// Default: false
	Vacuum bool `yaml:"vacuum"`
}

// AuditConfig contains configuration for the management-operation audit trail.
type AuditConfig struct {
	// Enabled controls whether management operations (config updates,
	// certificate uploads, server lifecycle) are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database file audit events are written to.
	// Default: "logs/audit.db"
	DBPath string `yaml:"db_path"`
}

// AdminConfig contains configuration for the management API and dashboard.
type AdminConfig struct {
	// Enabled controls whether the /ui management surface is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress optionally serves the management surface on a dedicated
	// listener instead of the proxy listener. Empty means the management
	// routes share the proxy listener under their reserved path prefixes.
	// Default: "" (shared)
	ListenAddress string `yaml:"listen_address"`

	// CertDir is the directory certificate uploads are written to.
	// Default: "certs"
	CertDir string `yaml:"cert_dir"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured process logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics exposure.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing configures OpenTelemetry distributed tracing.
	Tracing TracingConfig `yaml:"tracing"`

	// Health configures the health and version endpoints.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format selects the log encoding: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the metrics endpoint is served on.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "ganymede"
	Namespace string `yaml:"namespace"`

	// Subsystem is the second metric name component.
	// Default: "proxy"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets overrides the histogram buckets, in seconds,
	// used for request duration observations.
	// Default: [0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are produced. When false, a noop tracer
	// is installed and the overhead per request is negligible.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Exporter selects the span exporter. Only "otlp" (gRPC) is supported.
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP collector endpoint, host:port.
	// Required when Enabled is true.
	Endpoint string `yaml:"endpoint"`

	// SampleRatio is the fraction of traces sampled, between 0.0 and 1.0.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS on the exporter connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// ServiceName is the service.name resource attribute on exported spans.
	// Default: "ganymede"
	ServiceName string `yaml:"service_name"`
}

// HealthConfig configures health endpoints.
type HealthConfig struct {
	// Enabled controls whether health endpoints are served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the liveness probe path.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the readiness probe path.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the build information path.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`
}

// MaxRequestSizeBytes returns the request body ceiling in bytes.
func (c *ServerConfig) MaxRequestSizeBytes() int64 {
	return int64(c.MaxRequestSizeMB) * 1024 * 1024
}
