// Package storage groups the stores behind the PairMesh services.
//
//   - memory: tokens and rate windows, process-local and lost on restart
//   - blob: uploaded artifacts on the local filesystem
//
// Nothing token-related is ever persisted; a restart invalidates every
// pairing and session.
package storage
