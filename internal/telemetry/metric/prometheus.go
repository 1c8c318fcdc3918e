package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every PairMesh metric.
const Namespace = "pairmesh"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// Token metrics
	TokensIssued       *prometheus.CounterVec
	TokenExchanges     *prometheus.CounterVec
	SessionValidations *prometheus.CounterVec
	TokensSwept        prometheus.Counter
	TokensInvalidated  prometheus.Counter

	// Rate limiter metrics
	RateLimitDecisions *prometheus.CounterVec

	// Realtime metrics
	RealtimeAdmissions *prometheus.CounterVec
	RealtimeBroadcasts *prometheus.CounterVec
	RealtimeDrops      *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Upload metrics
	UploadBytes    prometheus.Counter
	StorageRetries prometheus.Counter

	BuildInfo *prometheus.GaugeVec
}

// NewRegistry creates a registry with all PairMesh metrics plus the Go
// runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tokens",
			Name:      "issued_total",
			Help:      "Tokens minted, by kind",
		}, []string{"kind"}),
		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tokens",
			Name:      "exchanges_total",
			Help:      "Ephemeral token exchange attempts, by result",
		}, []string{"result"}),
		SessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tokens",
			Name:      "session_validations_total",
			Help:      "Session token validations, by result",
		}, []string{"result"}),
		TokensSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tokens",
			Name:      "swept_total",
			Help:      "Expired tokens removed by the background sweep",
		}),
		TokensInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tokens",
			Name:      "invalidated_total",
			Help:      "Tokens removed by bulk invalidation",
		}),

		RateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limiter gate decisions, by route and decision",
		}, []string{"route", "decision"}),

		RealtimeAdmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "realtime",
			Name:      "admissions_total",
			Help:      "Realtime handshake outcomes, by result",
		}, []string{"result"}),
		RealtimeBroadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "realtime",
			Name:      "broadcasts_total",
			Help:      "Events broadcast to admitted connections, by event",
		}, []string{"event"}),
		RealtimeDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "realtime",
			Name:      "drops_total",
			Help:      "Connections closed by the hub, by reason",
		}, []string{"reason"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		UploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "uploads",
			Name:      "bytes_total",
			Help:      "Bytes accepted by the upload route",
		}),
		StorageRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "uploads",
			Name:      "storage_retries_total",
			Help:      "Retried blob storage attempts",
		}),
		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "build_info",
			Help:      "Always 1, labelled with the running build",
		}, []string{"version", "commit", "go_version"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.TokensIssued,
		r.TokenExchanges,
		r.SessionValidations,
		r.TokensSwept,
		r.TokensInvalidated,
		r.RateLimitDecisions,
		r.RealtimeAdmissions,
		r.RealtimeBroadcasts,
		r.RealtimeDrops,
		r.RequestsTotal,
		r.RequestDuration,
		r.UploadBytes,
		r.StorageRetries,
		r.BuildInfo,
	)
	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns the process-wide registry.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Register adds an extra collector, such as a scrape-time Collector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// RecordTokenIssued counts a minted token.
func (r *Registry) RecordTokenIssued(kind string) {
	if r == nil {
		return
	}
	r.TokensIssued.WithLabelValues(kind).Inc()
}

// RecordExchange counts an exchange attempt (ok, invalid, expired, raced).
func (r *Registry) RecordExchange(result string) {
	if r == nil {
		return
	}
	r.TokenExchanges.WithLabelValues(result).Inc()
}

// RecordSessionValidation counts a session validation (valid, invalid, expired).
func (r *Registry) RecordSessionValidation(result string) {
	if r == nil {
		return
	}
	r.SessionValidations.WithLabelValues(result).Inc()
}

// AddTokensSwept counts tokens removed by a sweep.
func (r *Registry) AddTokensSwept(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.TokensSwept.Add(float64(n))
}

// AddTokensInvalidated counts tokens removed by bulk invalidation.
func (r *Registry) AddTokensInvalidated(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.TokensInvalidated.Add(float64(n))
}

// RecordRateLimit counts a gate decision for route.
func (r *Registry) RecordRateLimit(route string, allowed bool) {
	if r == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	r.RateLimitDecisions.WithLabelValues(route, decision).Inc()
}

// RecordAdmission counts a realtime handshake outcome.
func (r *Registry) RecordAdmission(result string) {
	if r == nil {
		return
	}
	r.RealtimeAdmissions.WithLabelValues(result).Inc()
}

// RecordBroadcast counts a broadcast event.
func (r *Registry) RecordBroadcast(event string) {
	if r == nil {
		return
	}
	r.RealtimeBroadcasts.WithLabelValues(event).Inc()
}

// RecordDrop counts a connection closed by the hub.
func (r *Registry) RecordDrop(reason string) {
	if r == nil {
		return
	}
	r.RealtimeDrops.WithLabelValues(reason).Inc()
}

// RecordRequest counts a served HTTP request.
func (r *Registry) RecordRequest(method, route, status string) {
	if r == nil {
		return
	}
	r.RequestsTotal.WithLabelValues(method, route, status).Inc()
}

// ObserveRequestDuration records HTTP request latency in seconds.
func (r *Registry) ObserveRequestDuration(method, route string, seconds float64) {
	if r == nil {
		return
	}
	r.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// AddUploadBytes counts accepted upload bytes.
func (r *Registry) AddUploadBytes(n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.UploadBytes.Add(float64(n))
}

// IncStorageRetry counts a retried storage attempt.
func (r *Registry) IncStorageRetry() {
	if r == nil {
		return
	}
	r.StorageRetries.Inc()
}

// SetBuildInfo publishes the running build.
func (r *Registry) SetBuildInfo(version, commit, goVersion string) {
	if r == nil {
		return
	}
	r.BuildInfo.Reset()
	r.BuildInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
