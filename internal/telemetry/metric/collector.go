package metric

import "github.com/prometheus/client_golang/prometheus"

// StatsSource reports live state at scrape time.
type StatsSource interface {
	// TokenCounts returns live tokens by kind.
	TokenCounts() map[string]int

	// ConnectionCounts returns admitted realtime connections by role.
	ConnectionCounts() map[string]int

	// RateWindowCounts returns tracked rate windows by route.
	RateWindowCounts() map[string]int
}

// Collector exports gauges read from a StatsSource on every scrape, so
// they never drift from the stores they describe.
type Collector struct {
	source StatsSource

	tokensLive  *prometheus.Desc
	connections *prometheus.Desc
	rateWindows *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{
		source: source,
		tokensLive: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "tokens", "live"),
			"Live tokens held in memory, by kind",
			[]string{"kind"}, nil,
		),
		connections: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "realtime", "connections"),
			"Admitted realtime connections, by role",
			[]string{"role"}, nil,
		),
		rateWindows: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "ratelimit", "windows"),
			"Tracked rate limit windows, by route",
			[]string{"route"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tokensLive
	ch <- c.connections
	ch <- c.rateWindows
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	emit := func(desc *prometheus.Desc, values map[string]int) {
		for label, n := range values {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, float64(n), label)
		}
	}
	emit(c.tokensLive, c.source.TokenCounts())
	emit(c.connections, c.source.ConnectionCounts())
	emit(c.rateWindows, c.source.RateWindowCounts())
}
