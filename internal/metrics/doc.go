// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for scrub runs and object store traffic:
//   - Scrub run counters broken down by outcome (full, partial, failed)
//   - Anomaly totals broken down by kind
//   - Object store operations consumed by scrubbing
//   - Last scrub timestamp per partition
//   - Object store operation latency and bytes transferred
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus
// format.
//
// Usage:
//
//	scrubMetrics := metrics.NewScrubMetrics()
//	storeMetrics := metrics.NewObjectStoreMetrics()
//
//	store := objectstore.NewInstrumentedStore(s3Store, storeMetrics)
//	scrubber := scrub.NewScrubber(scrub.ScrubberConfig{Observer: scrubMetrics, ...})
//
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics
