// Package cmap provides a concurrent map implementation for PairMesh.
//
// This package implements a sharded concurrent map used by the in-memory
// token and rate-window stores:
//
//   - Sharding: murmur3 key hashing over a power-of-two shard count
//   - Fine-grained Locking: Per-shard RWMutex for minimal contention
//   - Conditional Mutation: Pop, DeleteIf and Update run inside the
//     shard lock, so check-then-act sequences are atomic per key
//   - Iteration: All (a range-over-func sequence) and RemoveIf sweeps
//
// Usage:
//
//	m := cmap.New[string, *domain.Token]()
//	m.Set(value, tok)
//	tok, ok := m.Pop(value)
//
// Thread Safety:
//
// All operations are thread-safe. Read operations (Get, Has) use RLock,
// write operations (Set, Delete, Pop, DeleteIf, Update) use Lock.
package cmap
