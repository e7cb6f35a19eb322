// Package health serves the liveness, readiness, and version endpoints.
//
// Liveness reports only that the process can answer HTTP. Readiness
// runs every registered component check concurrently, each under its
// own timeout, and answers 503 with per-component detail when any
// component is unhealthy:
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("traffic_store", store.Ping)
//	checker.RegisterCheck("audit_log", auditLog.Ping)
//	health.Register(mux, cfg.Telemetry.Health, checker, version, commit, buildTime)
//
// A load balancer watching readiness stops routing to a proxy whose
// storage went away while liveness keeps the process from being
// restarted for a dependency's problem.
package health
