// Package realtime implements the PairMesh realtime hub.
//
// The hub admits WebSocket connections, fans events out to every admitted
// connection and answers client heartbeats. Admission happens before the
// HTTP upgrade: a request carrying a session credential that does not
// validate is refused with 401 and never becomes a WebSocket.
//
// Each connection owns one buffered send queue drained by a dedicated
// writer goroutine. Queues are only fed while the hub lock is held, so every
// connection observes events in the order the hub issued them. A connection
// whose queue is full is closed with a policy violation status and must
// reconnect and send request-state to resynchronize.
package realtime
