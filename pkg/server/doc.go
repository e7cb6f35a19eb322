// Package server assembles and runs the proxy process.
//
// New builds every enabled subsystem from a loaded configuration:
// the client identity and forwarder, the admission limiters, the
// traffic and audit stores, telemetry, the management interface, and
// the certificate watcher. Start binds the listener (optionally
// TLS-terminating, connection-capped), mounts the reserved paths, and
// blocks until a termination signal, context cancellation, Stop, or a
// fatal serve error; Shutdown then drains in-flight requests within
// the configured timeout before the stores close.
//
// Routing on the proxy listener is by reserved path: /ui for the
// management interface, the metrics and health paths for telemetry,
// and everything else to the forwarding pipeline. When the management
// interface is configured with its own listen address it moves off the
// proxy listener entirely, and /ui falls through to the proxy like any
// other path.
package server
