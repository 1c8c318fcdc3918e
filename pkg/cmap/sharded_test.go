package cmap

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	m := New[string, int]()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if len(m.shards) != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", len(m.shards), DefaultShardCount)
	}
}

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},  // invalid → default
		{-1, DefaultShardCount}, // invalid → default
		{3, DefaultShardCount},  // not power of 2 → default
		{1, 1},
		{2, 2},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[string, int]()

	m.Set("key1", 100)
	m.Set("key2", 200)

	if val, ok := m.Get("key1"); !ok || val != 100 {
		t.Errorf("Get(key1) = (%d, %v), want (100, true)", val, ok)
	}
	if !m.Has("key2") {
		t.Error("Has(key2) = false, want true")
	}

	m.Delete("key1")
	if m.Has("key1") {
		t.Error("key1 should not exist after deletion")
	}

	// Delete non-existent key should not panic
	m.Delete("nonexistent")

	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestClear(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 50; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	if removed := m.Clear(); removed != 50 {
		t.Errorf("Clear() = %d, want 50", removed)
	}
	if m.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", m.Count())
	}
}

func TestSetIfAbsent(t *testing.T) {
	m := New[string, int]()

	if !m.SetIfAbsent("a", 1) {
		t.Error("first SetIfAbsent should succeed")
	}
	if m.SetIfAbsent("a", 2) {
		t.Error("second SetIfAbsent should fail")
	}
	if v, _ := m.Get("a"); v != 1 {
		t.Errorf("value = %d, want 1", v)
	}
}

func TestPop(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 7)

	v, ok := m.Pop("a")
	if !ok || v != 7 {
		t.Errorf("Pop(a) = (%d, %v), want (7, true)", v, ok)
	}
	if _, ok := m.Pop("a"); ok {
		t.Error("second Pop(a) should report absent")
	}
}

func TestPop_ConcurrentSingleWinner(t *testing.T) {
	m := New[string, int]()
	m.Set("once", 1)

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Pop("once"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Pop winners = %d, want 1", winners.Load())
	}
}

func TestDeleteIf(t *testing.T) {
	m := New[string, int]()
	m.Set("even", 2)
	m.Set("odd", 3)

	isEven := func(v int) bool { return v%2 == 0 }

	if _, removed := m.DeleteIf("odd", isEven); removed {
		t.Error("DeleteIf(odd) should not remove")
	}
	if v, removed := m.DeleteIf("even", isEven); !removed || v != 2 {
		t.Errorf("DeleteIf(even) = (%d, %v), want (2, true)", v, removed)
	}
	if _, removed := m.DeleteIf("missing", isEven); removed {
		t.Error("DeleteIf(missing) should not remove")
	}
	if !m.Has("odd") || m.Has("even") {
		t.Error("unexpected map contents after DeleteIf")
	}
}

func TestUpdate_Concurrent(t *testing.T) {
	m := New[string, int]()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Update("counter", func(v int, _ bool) int { return v + 1 })
		}()
	}
	wg.Wait()

	if v, _ := m.Get("counter"); v != 100 {
		t.Errorf("counter = %d, want 100", v)
	}
}

func TestRemoveIf(t *testing.T) {
	m := New[string, int]()
	for i := 0; i < 20; i++ {
		m.Set(fmt.Sprintf("k%02d", i), i)
	}

	removed := m.RemoveIf(func(_ string, v int) bool { return v < 5 })
	if removed != 5 {
		t.Errorf("RemoveIf() = %d, want 5", removed)
	}
	if m.Count() != 15 {
		t.Errorf("Count() = %d, want 15", m.Count())
	}
}

func TestAll(t *testing.T) {
	m := NewWithShards[string, int](4)
	for i := 0; i < 10; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}

	sum := 0
	for _, v := range m.All() {
		sum += v
	}
	if sum != 45 {
		t.Errorf("sum = %d, want 45", sum)
	}

	visited := 0
	for range m.All() {
		visited++
		if visited == 3 {
			break
		}
	}
	if visited != 3 {
		t.Errorf("visited = %d, want 3", visited)
	}

	// The loop body may mutate the map without deadlocking.
	for k := range m.All() {
		m.Delete(k)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d after deleting during iteration", m.Count())
	}
}

type tokenValue string

func TestMap_NamedStringKey(t *testing.T) {
	m := New[tokenValue, bool]()
	m.Set(tokenValue("pmst_x"), true)
	if !m.Has("pmst_x") {
		t.Error("named string key should be usable")
	}
}
