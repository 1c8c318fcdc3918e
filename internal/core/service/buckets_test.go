package service

import (
	"fmt"
	"testing"
	"time"
)

func newTestBuckets(rps int) (*ClientBuckets, *fakeClock) {
	clock := newFakeClock()
	b := NewClientBuckets(ClientBucketsConfig{Rate: rps, IdleTTL: time.Minute}, WithBucketsClock(clock.Now))
	return b, clock
}

func TestClientBuckets_BurstThenRefill(t *testing.T) {
	b, clock := newTestBuckets(2)

	if !b.Allow("X") || !b.Allow("X") {
		t.Fatal("burst of 2 rejected")
	}
	if b.Allow("X") {
		t.Fatal("3rd request within the same instant allowed")
	}
	if !b.Allow("Y") {
		t.Error("identifier Y should have its own bucket")
	}

	clock.Advance(500 * time.Millisecond)
	if !b.Allow("X") {
		t.Error("bucket did not refill one token after 500ms at 2/s")
	}
}

// Distinct identifiers must not accumulate once they go quiet.
func TestClientBuckets_SweepEvictsIdle(t *testing.T) {
	b, clock := newTestBuckets(100)

	for i := 0; i < 10000; i++ {
		b.Allow(fmt.Sprintf("10.%d.%d.%d", i>>16&0xff, i>>8&0xff, i&0xff))
	}
	if b.Count() != 10000 {
		t.Fatalf("Count() = %d, want 10000", b.Count())
	}

	clock.Advance(30 * time.Second)
	b.Allow("10.0.0.1")
	if n := b.Sweep(); n != 0 {
		t.Errorf("Sweep() before IdleTTL removed %d, want 0", n)
	}

	clock.Advance(30 * time.Second)
	if n := b.Sweep(); n != 9999 {
		t.Errorf("Sweep() removed %d, want 9999", n)
	}
	if b.Count() != 1 {
		t.Errorf("Count() = %d, want only the recently seen identifier", b.Count())
	}
}

func TestClientBuckets_StartStop(t *testing.T) {
	clock := newFakeClock()
	b := NewClientBuckets(ClientBucketsConfig{
		Rate: 10, IdleTTL: time.Minute, SweepInterval: 5 * time.Millisecond,
	}, WithBucketsClock(clock.Now))

	b.Allow("X")
	clock.Advance(2 * time.Minute)

	b.Start()
	defer b.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for b.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("background sweep did not evict the idle bucket")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
