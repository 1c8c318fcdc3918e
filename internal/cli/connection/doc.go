// Package connection provides server communication for pairmesh-cli.
//
//   - http.go: JSON client for the pairing, upload and admin routes,
//     decoding the {code, message, data, details} response envelope
//   - realtime.go: WebSocket client for the realtime hub with heartbeat
//
// Credentials are passed explicitly: a session token travels as a bearer
// token and the operator admin key in the X-Admin-Key header.
package connection
