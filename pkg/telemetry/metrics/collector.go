package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/ganymede/pkg/config"
	"mercator-hq/ganymede/pkg/proxy"
)

// Collector owns the Prometheus registry and all proxy metric families.
// It implements the forwarding path's observer interface, so the hot
// path records outcomes without knowing about Prometheus.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics   *RequestMetrics
	admissionMetrics *AdmissionMetrics
}

var _ proxy.Observer = (*Collector)(nil)

// NewCollector creates a metrics collector registered against registry.
// A nil registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = "ganymede"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "proxy"
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		// Forwards ride one end-to-end deadline, typically tens of
		// seconds; buckets range accordingly.
		cfg.RequestDurationBuckets = []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.admissionMetrics = NewAdmissionMetrics(cfg, registry)

	return c
}

// ObserveRequest records one completed request: count by method and
// status, duration, body sizes, and the upstream error category when
// the forward failed.
func (c *Collector) ObserveRequest(method string, status int, category string, duration time.Duration, bytesIn, bytesOut int64) {
	if !c.config.Enabled {
		return
	}

	c.requestMetrics.Record(normalizeMethod(method), strconv.Itoa(status), duration, bytesIn, bytesOut)

	if isUpstreamCategory(category) {
		c.admissionMetrics.RecordUpstreamError(category)
	}
}

// ObserveRejection records one admission rejection by reason.
func (c *Collector) ObserveRejection(category string) {
	if !c.config.Enabled {
		return
	}
	c.admissionMetrics.RecordRejection(category)
}

// InFlightInc marks a request entering the forwarding path.
func (c *Collector) InFlightInc() {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Inc()
}

// InFlightDec marks a request leaving the forwarding path.
func (c *Collector) InFlightDec() {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Dec()
}

// RegisterDroppedRecords exposes the traffic recorder's dropped-record
// count as a counter. fn is read at scrape time.
func (c *Collector) RegisterDroppedRecords(fn func() int64) {
	c.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "records_dropped_total",
			Help:      "Traffic records dropped because the recorder buffer was full",
		},
		func() float64 { return float64(fn()) },
	))
}

// Registry returns the Prometheus registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// knownMethods bounds the method label: anything else becomes "other"
// so arbitrary client verbs cannot grow the series set.
var knownMethods = map[string]struct{}{
	"GET": {}, "HEAD": {}, "POST": {}, "PUT": {}, "PATCH": {},
	"DELETE": {}, "OPTIONS": {}, "TRACE": {}, "CONNECT": {},
}

func normalizeMethod(method string) string {
	if _, ok := knownMethods[method]; ok {
		return method
	}
	return "other"
}

func isUpstreamCategory(category string) bool {
	switch proxy.ErrorCategory(category) {
	case proxy.CategoryUpstreamConnectFailed,
		proxy.CategoryUpstreamTimeout,
		proxy.CategoryUpstreamProtocolError,
		proxy.CategoryClientDisconnected:
		return true
	}
	return false
}
