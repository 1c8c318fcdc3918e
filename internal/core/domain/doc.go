// Package domain defines the core domain models for PairMesh.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Token: ephemeral pairing tokens and session tokens
//   - Lookup: the outcome of resolving a token value
//   - RateWindow: a fixed-window request counter
//   - Event: realtime wire events and their payloads
//   - Errors: the typed error taxonomy shared by every component
package domain
