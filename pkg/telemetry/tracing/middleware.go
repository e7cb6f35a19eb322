package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys recorded on proxied requests.
const (
	attrHTTPMethod     = "http.method"
	attrHTTPTarget     = "http.target"
	attrHTTPStatusCode = "http.status_code"
	attrClientAddress  = "client.address"
)

// Middleware wraps an HTTP handler with one server span per request.
//
// Incoming W3C trace context is extracted so spans join traces started by
// clients, and the active span context is written back into the request
// headers before the handler runs. The forwarder copies inbound headers
// onto the upstream request, so the traceparent sent upstream names this
// span as the parent.
//
// When tracing is disabled the handler is returned unchanged.
func (t *Tracer) Middleware(next http.Handler) http.Handler {
	if !t.enabled {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := t.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := t.tracer.Start(ctx, "proxy "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String(attrHTTPMethod, r.Method),
				attribute.String(attrHTTPTarget, r.URL.RequestURI()),
				attribute.String(attrClientAddress, r.RemoteAddr),
			),
		)
		defer span.End()

		t.propagator.Inject(ctx, propagation.HeaderCarrier(r.Header))

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		span.SetAttributes(attribute.Int(attrHTTPStatusCode, status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

// statusWriter records the response code while passing Flush through so
// streamed response bodies are not buffered.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
