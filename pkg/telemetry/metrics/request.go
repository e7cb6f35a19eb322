package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
)

// RequestMetrics tracks the forwarding path.
//
// Metrics:
//   - ganymede_proxy_requests_total: request count by method and status
//   - ganymede_proxy_request_duration_seconds: handling time histogram
//   - ganymede_proxy_requests_in_flight: forwards currently running
//   - ganymede_proxy_request_size_bytes: request body bytes sent upstream
//   - ganymede_proxy_response_size_bytes: response body bytes streamed back
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	requestSize     prometheus.Histogram
	responseSize    prometheus.Histogram
}

// NewRequestMetrics creates and registers the request metric families.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	// 256 B up to 64 MB, factor 4.
	sizeBuckets := prometheus.ExponentialBuckets(256, 4, 10)

	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total requests handled, including rejected ones",
			},
			[]string{"method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Request handling time in seconds",
				Buckets:   cfg.RequestDurationBuckets,
			},
			[]string{"method"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_in_flight",
				Help:      "Forwards currently holding a concurrency slot",
			},
		),

		requestSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_size_bytes",
				Help:      "Request body bytes read from the client",
				Buckets:   sizeBuckets,
			},
		),

		responseSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "response_size_bytes",
				Help:      "Response body bytes written to the client",
				Buckets:   sizeBuckets,
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.inFlight,
		rm.requestSize,
		rm.responseSize,
	)

	return rm
}

// Record records one completed request.
func (rm *RequestMetrics) Record(method, status string, duration time.Duration, bytesIn, bytesOut int64) {
	rm.requestsTotal.WithLabelValues(method, status).Inc()
	rm.requestDuration.WithLabelValues(method).Observe(duration.Seconds())

	if bytesIn > 0 {
		rm.requestSize.Observe(float64(bytesIn))
	}
	if bytesOut > 0 {
		rm.responseSize.Observe(float64(bytesOut))
	}
}
