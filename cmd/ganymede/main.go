// Ganymede is an mTLS-terminating forward proxy for upstream APIs that
// require client certificates.
//
// It accepts plain HTTP (or TLS) from local callers and forwards every
// request over mutual TLS to a single configured upstream, providing:
//   - Client certificate management with live reload
//   - Admission control (token bucket rate limiting, concurrency caps)
//   - Traffic recording with a searchable SQLite history
//   - A management dashboard and REST API
//   - Prometheus metrics, health endpoints, and OTLP tracing
//
// Usage:
//
//	# Start the proxy with default configuration
//	ganymede run
//
//	# Start with a custom configuration file
//	ganymede run --config /etc/ganymede/config.yaml
//
//	# Validate configuration without starting
//	ganymede validate
//
//	# Generate a self-signed client identity for testing
//	ganymede certs generate --cn dev-client
//
//	# Search recorded traffic
//	ganymede logs search --status 429 --limit 20
//
// For complete documentation, see: https://github.com/mercator-hq/ganymede
package main

func main() {
	Execute()
}
