// Package telemetry provides observability for Mercator Ganymede.
//
// # Components
//
//   - logging: structured logging built on log/slog
//   - metrics: Prometheus metrics collection
//   - tracing: OpenTelemetry distributed tracing
//   - health: liveness, readiness, and version endpoints
//
// Each component is configured through the telemetry section of the
// proxy configuration and can be disabled independently. The forwarding
// path never blocks on telemetry.
package telemetry
