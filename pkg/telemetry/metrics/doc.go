// Package metrics exposes the proxy's Prometheus metrics.
//
// # Metric families
//
// All metrics carry the configured namespace and subsystem prefix
// (ganymede_proxy_ by default):
//
//   - requests_total{method,status}: every handled request, rejections
//     included; unknown methods collapse into "other"
//   - request_duration_seconds{method}: handling time histogram
//   - requests_in_flight: gauge of forwards holding a concurrency slot
//   - request_size_bytes / response_size_bytes: body size histograms
//   - admission_rejections_total{reason}: 429/413/503 rejections
//   - upstream_errors_total{category}: failed forwards by error category
//   - records_dropped_total: traffic records lost to a full buffer
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.RegisterDroppedRecords(recorder.Dropped)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// The Collector implements the proxy handler's Observer interface; wire
// it into proxy.HandlerConfig.Metrics and the forwarding path feeds it
// directly.
package metrics
