package cmap

import "iter"

// All yields every entry, one shard at a time. Each shard is copied under
// its read lock before yielding, so the loop body may call back into the
// map. The view is not a consistent snapshot across shards.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, s := range m.shards {
			s.mu.RLock()
			keys := make([]K, 0, len(s.items))
			vals := make([]V, 0, len(s.items))
			for k, v := range s.items {
				keys = append(keys, k)
				vals = append(vals, v)
			}
			s.mu.RUnlock()

			for i := range keys {
				if !yield(keys[i], vals[i]) {
					return
				}
			}
		}
	}
}

// RemoveIf deletes every entry accepted by pred and returns how many were
// removed. Only the shard being scanned is write locked.
func (m *Map[K, V]) RemoveIf(pred func(key K, value V) bool) int {
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.items {
			if pred(k, v) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
