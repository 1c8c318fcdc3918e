// Package memory provides in-memory stores for PairMesh.
//
// Tokens and rate windows live only in process memory and are lost on
// restart. Both stores are built on the sharded map in pkg/cmap, so every
// per-key mutation is an atomic critical section with respect to
// concurrent callers.
//
// Stores are plain values owned by whoever constructs them; there is no
// package-level state, so tests can run with isolated stores.
package memory
