package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
)

// AdmissionMetrics tracks rejected requests and upstream failures.
//
// Metrics:
//   - ganymede_proxy_admission_rejections_total: rejections by reason
//     (rate_limit_exceeded, request_too_large, concurrency_limit_exceeded)
//   - ganymede_proxy_upstream_errors_total: failed forwards by category
//     (upstream_connect_failed, upstream_timeout, upstream_protocol_error,
//     client_disconnected)
type AdmissionMetrics struct {
	rejectionsTotal     *prometheus.CounterVec
	upstreamErrorsTotal *prometheus.CounterVec
}

// NewAdmissionMetrics creates and registers the admission metric families.
func NewAdmissionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AdmissionMetrics {
	am := &AdmissionMetrics{
		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "admission_rejections_total",
				Help:      "Requests rejected before reaching the upstream",
			},
			[]string{"reason"},
		),

		upstreamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_errors_total",
				Help:      "Forwards that failed after admission",
			},
			[]string{"category"},
		),
	}

	registry.MustRegister(am.rejectionsTotal, am.upstreamErrorsTotal)

	return am
}

// RecordRejection counts one admission rejection.
func (am *AdmissionMetrics) RecordRejection(reason string) {
	am.rejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordUpstreamError counts one failed forward.
func (am *AdmissionMetrics) RecordUpstreamError(category string) {
	am.upstreamErrorsTotal.WithLabelValues(category).Inc()
}
