// Package httpserver provides the HTTP/HTTPS server for PairMesh.
//
// This package implements the external API using stdlib net/http:
//
//   - Pairing endpoints: /v1/pairing/ephemeral, /v1/pairing/exchange, /v1/pairing/session
//   - Artifact endpoints: /v1/uploads, /v1/blobs/{owner}/{object}
//   - Realtime endpoint: /v1/realtime (WebSocket)
//   - Admin endpoints: /admin/v1/*
//   - Health endpoints: /health, /ready, /metrics
//
// Middleware chain: Recover, RequestID, CORS, Metrics, Audit, then the
// per-route guards (rate limit gate, session auth, admin auth).
package httpserver
