// Package middleware provides the HTTP middleware chain wrapped around
// both the forwarding handler and the management surface.
//
// The middleware stack (applied outermost first):
//
//   - RecoveryMiddleware: catches panics, returns a JSON 500.
//   - RequestIDMiddleware: assigns or propagates X-Request-ID.
//   - LoggingMiddleware: structured request completion logs.
//
// Admission control (rate limiting, body size, concurrency) is not
// middleware here: it belongs to the forwarding handler so that
// management routes are never subject to proxy admission limits.
package middleware
