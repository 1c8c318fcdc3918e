package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/pairmesh-go/internal/storage/memory"
	"github.com/yndnr/pairmesh-go/internal/telemetry/metric"
)

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *memory.WindowStore, *fakeClock) {
	store := memory.NewWindowStore()
	clock := newFakeClock()
	l := NewRateLimiter(store, RateLimiterConfig{Name: "test", Limit: limit, Window: window},
		WithLimiterClock(clock.Now),
		WithLimiterMetrics(metric.NewRegistry()),
	)
	return l, store, clock
}

// limit=5, window=60s: five calls from X pass, the sixth is rejected with a
// wait of about 60s, and Y is unaffected.
func TestGate_LimitThenReject(t *testing.T) {
	l, _, _ := newTestLimiter(5, 60*time.Second)

	for i := 1; i <= 5; i++ {
		d := l.Gate("X")
		if !d.Allowed {
			t.Fatalf("call %d rejected, want allowed", i)
		}
		if d.Remaining != 5-i {
			t.Errorf("call %d Remaining = %d, want %d", i, d.Remaining, 5-i)
		}
	}

	d := l.Gate("X")
	if d.Allowed {
		t.Fatal("6th call allowed, want rejected")
	}
	if d.RetryAfter != 60*time.Second {
		t.Errorf("RetryAfter = %v, want 60s", d.RetryAfter)
	}
	if d.RetryAfterSeconds() != 60 {
		t.Errorf("RetryAfterSeconds() = %d, want 60", d.RetryAfterSeconds())
	}

	if !l.Gate("Y").Allowed {
		t.Error("identifier Y should have its own budget")
	}
}

func TestGate_WindowReset(t *testing.T) {
	l, _, clock := newTestLimiter(2, time.Minute)

	l.Gate("X")
	clock.Advance(30 * time.Second)
	l.Gate("X")
	if l.Gate("X").Allowed {
		t.Fatal("3rd call in window should be rejected")
	}

	// The window is anchored at its first request, not the last one.
	clock.Advance(30 * time.Second)
	d := l.Gate("X")
	if !d.Allowed {
		t.Fatal("call at window reset should be allowed")
	}
	if d.Remaining != 1 {
		t.Errorf("Remaining after reset = %d, want 1", d.Remaining)
	}
}

func TestGate_RejectedCallsDoNotExtendWindow(t *testing.T) {
	l, _, clock := newTestLimiter(1, time.Minute)

	l.Gate("X")
	for i := 0; i < 10; i++ {
		clock.Advance(5 * time.Second)
		l.Gate("X")
	}
	clock.Advance(10 * time.Second)
	if !l.Gate("X").Allowed {
		t.Error("window should reset one minute after its first request")
	}
}

func TestDecision_RetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name string
		d    Decision
		want int
	}{
		{"allowed", Decision{Allowed: true, RetryAfter: 5 * time.Second}, 0},
		{"exact", Decision{RetryAfter: 3 * time.Second}, 3},
		{"rounds up", Decision{RetryAfter: 2*time.Second + time.Millisecond}, 3},
		{"sub-second", Decision{RetryAfter: 10 * time.Millisecond}, 1},
		{"zero", Decision{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.RetryAfterSeconds(); got != tt.want {
				t.Errorf("RetryAfterSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGate_EmptyIdentifier(t *testing.T) {
	l, store, _ := newTestLimiter(1, time.Minute)

	l.Gate("")
	if l.Gate("").Allowed {
		t.Error("empty identifiers should share the unknown bucket")
	}
	if _, ok := store.Get("unknown"); !ok {
		t.Error(`window should be tracked under "unknown"`)
	}
}

func TestGate_Concurrent(t *testing.T) {
	l, _, _ := newTestLimiter(50, time.Minute)

	var mu sync.Mutex
	allowed := 0
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Gate("X").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestResetAndResetAll(t *testing.T) {
	l, _, _ := newTestLimiter(1, time.Minute)

	for i := 0; i < 3; i++ {
		l.Gate(fmt.Sprintf("id-%d", i))
		l.Gate(fmt.Sprintf("id-%d", i))
	}

	if !l.Reset("id-0") {
		t.Error("Reset(id-0) = false, want true")
	}
	if l.Reset("missing") {
		t.Error("Reset(missing) = true, want false")
	}
	if !l.Gate("id-0").Allowed {
		t.Error("id-0 should be allowed after Reset")
	}
	if l.Gate("id-1").Allowed {
		t.Error("id-1 should still be limited")
	}

	if n := l.ResetAll(); n != 3 {
		t.Errorf("ResetAll() = %d, want 3", n)
	}
	if l.Count() != 0 {
		t.Errorf("Count() = %d, want 0", l.Count())
	}
}

func TestLimiterSweep(t *testing.T) {
	l, _, clock := newTestLimiter(5, time.Minute)

	l.Gate("old")
	clock.Advance(30 * time.Second)
	l.Gate("new")
	clock.Advance(30 * time.Second)

	if n := l.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if l.Count() != 1 {
		t.Errorf("Count() = %d, want 1", l.Count())
	}
}

func TestLimiterStartStop(t *testing.T) {
	store := memory.NewWindowStore()
	clock := newFakeClock()
	l := NewRateLimiter(store, RateLimiterConfig{
		Name: "test", Limit: 1, Window: time.Minute, SweepInterval: 5 * time.Millisecond,
	}, WithLimiterClock(clock.Now))

	l.Gate("X")
	clock.Advance(2 * time.Minute)

	l.Start()
	defer l.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for l.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not remove the elapsed window")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
