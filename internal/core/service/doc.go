// Package service provides domain services for PairMesh.
//
// Domain services contain the business logic and orchestrate operations
// on domain models. They define interfaces for their storage and
// collaborator dependencies, which are constructor-injected so tests can
// run against isolated stores and a controllable clock.
//
// This package contains:
//
//   - TokenAuthority: issues, exchanges, validates and expires tokens
//   - RateLimiter: fixed-window request gating per identifier
//   - AdminAuthenticator: Argon2id verification of the operator admin key
//   - UploadService: stores artifacts with retries and announces them
package service
