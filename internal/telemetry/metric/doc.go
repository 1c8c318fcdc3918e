// Package metric provides Prometheus metrics for PairMesh.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: registry of counters and histograms updated by services
//   - collector.go: scrape-time gauges read from live service state
//
// Every recording method is safe to call on a nil *Registry, so services
// can run without metrics in tests.
//
// Metrics are exposed at /metrics in Prometheus format.
package metric
