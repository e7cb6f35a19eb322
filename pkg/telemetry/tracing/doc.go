// Package tracing provides OpenTelemetry distributed tracing for Ganymede.
//
// # Overview
//
// The tracing package wraps the OpenTelemetry SDK behind a small surface:
// one server span per proxied request, W3C Trace Context propagation, and
// span export over OTLP/gRPC. Trace parents received from clients are
// honored, and the active span context is forwarded to upstreams through
// the proxied request headers.
//
// # Trace Context Propagation
//
// The package implements W3C Trace Context (https://www.w3.org/TR/trace-context/)
// for propagating trace context across HTTP boundaries:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//	tracestate: congo=t61rcWkgMzE
//
// # Sampling
//
// Sampling is controlled by a single ratio. A ratio of 1.0 samples every
// trace, 0 disables sampling, and values in between sample that fraction
// of new traces while honoring the sampling decision of remote parents.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	handler = tracer.Middleware(handler)
package tracing
