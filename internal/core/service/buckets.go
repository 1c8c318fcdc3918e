package service

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/pairmesh-go/pkg/cmap"
)

// ClientBucketsConfig holds configuration for ClientBuckets.
type ClientBucketsConfig struct {
	// Rate is the sustained requests per second per identifier. It is
	// also the burst size.
	Rate int

	// IdleTTL is how long a bucket may go unused before it is evicted
	// (default: 5m). A bucket refills within one second, so an evicted
	// bucket would have been full anyway.
	IdleTTL time.Duration

	// SweepInterval is how often idle buckets are evicted (default: 60s).
	SweepInterval time.Duration
}

// BucketsOption configures ClientBuckets.
type BucketsOption func(*ClientBuckets)

// WithBucketsClock sets the clock used for refills and idle accounting.
func WithBucketsClock(now Clock) BucketsOption {
	return func(b *ClientBuckets) { b.now = now }
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ClientBuckets is a token bucket per client identifier for the global
// request ceiling. Buckets are created on first use and evicted by the
// sweep once idle.
type ClientBuckets struct {
	buckets *cmap.Map[string, *clientBucket]
	cfg     ClientBucketsConfig
	now     Clock
	sweep   sweeper
}

// NewClientBuckets creates an empty bucket set.
func NewClientBuckets(cfg ClientBucketsConfig, opts ...BucketsOption) *ClientBuckets {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 60 * time.Second
	}
	b := &ClientBuckets{
		buckets: cmap.New[string, *clientBucket](),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow takes one token from the bucket of identifier.
func (b *ClientBuckets) Allow(identifier string) bool {
	now := b.now()
	bk := b.buckets.Update(identifier, func(v *clientBucket, exists bool) *clientBucket {
		if !exists {
			v = &clientBucket{limiter: rate.NewLimiter(rate.Limit(b.cfg.Rate), b.cfg.Rate)}
		}
		v.lastSeen = now
		return v
	})
	return bk.limiter.AllowN(now, 1)
}

// Sweep evicts buckets idle for at least IdleTTL.
func (b *ClientBuckets) Sweep() int {
	now := b.now()
	return b.buckets.RemoveIf(func(_ string, v *clientBucket) bool {
		return now.Sub(v.lastSeen) >= b.cfg.IdleTTL
	})
}

// Count returns the number of tracked identifiers.
func (b *ClientBuckets) Count() int {
	return b.buckets.Count()
}

// Start launches the background sweep.
func (b *ClientBuckets) Start() {
	b.sweep.start(b.cfg.SweepInterval, func() { b.Sweep() })
}

// Stop halts the background sweep.
func (b *ClientBuckets) Stop() {
	b.sweep.stop()
}
