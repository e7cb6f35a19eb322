package server

import (
	"net/http"

	"mercator-hq/ganymede/pkg/proxy/middleware"
	"mercator-hq/ganymede/pkg/telemetry/health"
)

// buildHandler assembles the proxy listener's handler. Reserved paths
// go to the management UI and telemetry endpoints; everything else is
// the catch-all forwarding path. A reserved path whose subsystem is
// disabled is not registered and falls through to the proxy.
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// Tracing wraps only the forwarding path so probes and dashboard
	// requests never produce spans.
	mux.Handle("/", s.tracer.Middleware(s.proxyHandler))

	if s.adminUI != nil && s.cfg.Admin.ListenAddress == "" {
		mux.Handle("/ui", s.adminUI)
		mux.Handle("/ui/", s.adminUI)
	}

	// Reserved paths own every method; an odd-method request to one of
	// them must not leak upstream.
	if s.collector != nil {
		mux.Handle(s.cfg.Telemetry.Metrics.Path, s.collector.Handler())
	}

	if s.checker != nil {
		health.Register(mux, s.cfg.Telemetry.Health, s.checker,
			s.opts.Version, s.opts.Commit, s.opts.BuildTime)
	}

	return chain(mux)
}

// buildAdminHandler assembles the handler for a dedicated management
// listener. Only the /ui tree is mounted; proxy traffic to this
// listener gets a 404.
func (s *Server) buildAdminHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ui", s.adminUI)
	mux.Handle("/ui/", s.adminUI)
	return chain(mux)
}

// chain applies the standard middleware stack. Recovery is outermost;
// logging runs inside request ID so every entry carries the ID.
func chain(h http.Handler) http.Handler {
	h = middleware.LoggingMiddleware(h)
	h = middleware.RequestIDMiddleware(h)
	h = middleware.RecoveryMiddleware(h)
	return h
}
