// Package main provides the entry point for pairmesh-server.
//
// The server runs on the primary (editor) machine and provides:
//
//   - Pairing: single-use ephemeral tokens exchanged for session tokens
//   - Artifact uploads from paired secondary clients
//   - A WebSocket realtime channel that pushes events to every client
//   - An admin API guarded by an Argon2id-hashed admin key
//
// Usage:
//
//	pairmesh-server [flags]
//	pairmesh-server --config /etc/pairmesh/server.yaml
//	pairmesh-server check-config --config /etc/pairmesh/server.yaml
//	pairmesh-server version
package main
