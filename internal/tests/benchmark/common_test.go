package benchmark

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/service"
	"github.com/yndnr/pairmesh-go/internal/storage/memory"
	"github.com/yndnr/pairmesh-go/internal/telemetry/logger"
)

// TokenCounts defines how many live tokens are held during a benchmark.
var TokenCounts = []int{1000, 10000, 100000}

// IdentifierCounts defines how many distinct clients hit a rate limiter.
var IdentifierCounts = []int{100, 10000}

// newAuthority returns an authority without a background sweeper.
func newAuthority() *service.TokenAuthority {
	return service.NewTokenAuthority(memory.NewTokenStore(), &service.TokenAuthorityConfig{
		EphemeralTTL:  5 * time.Minute,
		SessionTTL:    time.Hour,
		SweepInterval: time.Hour,
	}, service.WithAuthorityLogger(logger.Nop()))
}

// prefillSessions pairs count clients and returns their session values.
func prefillSessions(b *testing.B, a *service.TokenAuthority, count int) []string {
	b.Helper()
	ctx := context.Background()
	sessions := make([]string, count)
	for i := range sessions {
		eph, err := a.IssueEphemeral(ctx)
		if err != nil {
			b.Fatalf("IssueEphemeral failed: %v", err)
		}
		sess, err := a.Exchange(ctx, eph.Value)
		if err != nil {
			b.Fatalf("Exchange failed: %v", err)
		}
		sessions[i] = sess.Value
	}
	return sessions
}

func newLimiter(limit int) *service.RateLimiter {
	return service.NewRateLimiter(memory.NewWindowStore(), service.RateLimiterConfig{
		Name:   "bench",
		Limit:  limit,
		Window: time.Minute,
	})
}

// reportMemory reports heap usage after a forced GC.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
}

// runWithCounts runs benchFn once per count.
func runWithCounts(b *testing.B, label string, counts []int, benchFn func(b *testing.B, count int)) {
	for _, count := range counts {
		b.Run(fmt.Sprintf("%s_%d", label, count), func(b *testing.B) {
			benchFn(b, count)
		})
	}
}
