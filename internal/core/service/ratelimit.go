package service

import (
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

// WindowStore defines the storage interface for rate windows.
type WindowStore interface {
	// Update runs fn as one critical section for identifier and stores
	// its result.
	Update(identifier string, fn func(w domain.RateWindow, exists bool) domain.RateWindow) domain.RateWindow

	// Delete removes the window for identifier.
	Delete(identifier string) bool

	// DeleteElapsed removes every window elapsed at now.
	DeleteElapsed(now time.Time) int

	// Clear removes every window.
	Clear() int

	// Count returns the number of tracked windows.
	Count() int
}

// RateLimiterConfig holds configuration for a RateLimiter.
type RateLimiterConfig struct {
	// Name identifies the guarded route in metrics and admin calls.
	Name string

	// Limit is the number of requests allowed per window.
	Limit int

	// Window is the fixed window length.
	Window time.Duration

	// SweepInterval is how often elapsed windows are purged (default: 60s).
	SweepInterval time.Duration
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock sets the clock used for window accounting.
func WithLimiterClock(now Clock) LimiterOption {
	return func(l *RateLimiter) { l.now = now }
}

// WithLimiterMetrics sets the metrics registry.
func WithLimiterMetrics(m *metric.Registry) LimiterOption {
	return func(l *RateLimiter) { l.metrics = m }
}

// Decision is the outcome of a Gate call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// RetryAfterSeconds returns RetryAfter rounded up to whole seconds, with a
// minimum of 1 for rejected requests.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimiter is a fixed-window counter per identifier.
//
// A window resets exactly when a request arrives at or after its ResetAt;
// otherwise the count only grows. Identifiers never share budget.
type RateLimiter struct {
	store   WindowStore
	cfg     RateLimiterConfig
	now     Clock
	metrics *metric.Registry
	sweep   sweeper
}

// NewRateLimiter creates a RateLimiter backed by its own store.
func NewRateLimiter(store WindowStore, cfg RateLimiterConfig, opts ...LimiterOption) *RateLimiter {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	l := &RateLimiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Name returns the configured route name.
func (l *RateLimiter) Name() string {
	return l.cfg.Name
}

// Gate counts one request for identifier and decides whether it may proceed.
func (l *RateLimiter) Gate(identifier string) Decision {
	if identifier == "" {
		identifier = "unknown"
	}
	now := l.now()

	w := l.store.Update(identifier, func(w domain.RateWindow, exists bool) domain.RateWindow {
		if !exists || w.Elapsed(now) {
			w = domain.RateWindow{
				Identifier: identifier,
				ResetAt:    now.Add(l.cfg.Window),
			}
		}
		w.Count++
		return w
	})

	d := Decision{
		Allowed: w.Count <= l.cfg.Limit,
		Limit:   l.cfg.Limit,
		ResetAt: w.ResetAt,
	}
	if d.Allowed {
		d.Remaining = l.cfg.Limit - w.Count
	} else {
		d.RetryAfter = w.ResetAt.Sub(now)
	}
	l.metrics.RecordRateLimit(l.cfg.Name, d.Allowed)
	return d
}

// Reset clears the window for identifier.
func (l *RateLimiter) Reset(identifier string) bool {
	return l.store.Delete(identifier)
}

// ResetAll clears every window.
func (l *RateLimiter) ResetAll() int {
	return l.store.Clear()
}

// Sweep removes elapsed windows.
func (l *RateLimiter) Sweep() int {
	return l.store.DeleteElapsed(l.now())
}

// Count returns the number of tracked windows.
func (l *RateLimiter) Count() int {
	return l.store.Count()
}

// Start launches the background sweep.
func (l *RateLimiter) Start() {
	l.sweep.start(l.cfg.SweepInterval, func() { l.Sweep() })
}

// Stop halts the background sweep.
func (l *RateLimiter) Stop() {
	l.sweep.stop()
}
