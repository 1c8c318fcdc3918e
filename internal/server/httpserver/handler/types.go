package handler

import "time"

// Response is the standard API response envelope.
// All JSON responses use this format (except /metrics which uses Prometheus format).
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"` // Additional error details
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// IssueEphemeralResponse is the response body for POST /v1/pairing/ephemeral.
type IssueEphemeralResponse struct {
	Value            string    `json:"value"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds"`
	PairingURL       string    `json:"pairing_url"`
}

// ExchangeRequest is the request body for POST /v1/pairing/exchange.
type ExchangeRequest struct {
	EphemeralValue string `json:"ephemeral_value"`
}

// ExchangeResponse is the response body for POST /v1/pairing/exchange.
type ExchangeResponse struct {
	SessionValue string    `json:"session_value"`
	PeerID       string    `json:"peer_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionResponse is the response body for GET /v1/pairing/session.
type SessionResponse struct {
	Valid     bool      `json:"valid"`
	PeerID    string    `json:"peer_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadResponse is the response body for POST /v1/uploads.
type UploadResponse struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// StatusSummary is the response body for GET /admin/v1/status/summary.
type StatusSummary struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Tokens        TokenCounts    `json:"tokens"`
	Connections   map[string]int `json:"connections"`
	Peers         []PeerSummary  `json:"peers"`
	RateLimits    map[string]int `json:"rate_limit_windows"`
}

// TokenCounts reports live tokens by kind.
type TokenCounts struct {
	Ephemeral int `json:"ephemeral"`
	Session   int `json:"session"`
}

// PeerSummary describes one admitted secondary peer.
type PeerSummary struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// ResetLimitsRequest is the request body for POST /admin/v1/ratelimit/reset.
type ResetLimitsRequest struct {
	Route      string `json:"route"`
	Identifier string `json:"identifier,omitempty"`
}

// ResetLimitsResponse is the response body for POST /admin/v1/ratelimit/reset.
type ResetLimitsResponse struct {
	Route   string `json:"route"`
	Cleared int    `json:"cleared"`
}

// InvalidateResponse is the response body for POST /admin/v1/tokens/invalidate.
type InvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}
