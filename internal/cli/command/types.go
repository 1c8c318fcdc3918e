package command

import "time"

// Response payloads of the PairMesh HTTP API, as carried in the data field
// of the response envelope.

type pairingCode struct {
	Value            string    `json:"value"`
	ExpiresAt        time.Time `json:"expires_at"`
	ExpiresInSeconds int64     `json:"expires_in_seconds" table:"wide"`
	PairingURL       string    `json:"pairing_url"`
}

type exchangeRequest struct {
	EphemeralValue string `json:"ephemeral_value"`
}

type sessionGrant struct {
	SessionValue string    `json:"session_value"`
	PeerID       string    `json:"peer_id"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type sessionStatus struct {
	Valid     bool      `json:"valid"`
	PeerID    string    `json:"peer_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type uploadResult struct {
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type statusSummary struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Tokens        tokenCounts    `json:"tokens"`
	Connections   map[string]int `json:"connections"`
	Peers         []peerSummary  `json:"peers"`
	RateLimits    map[string]int `json:"rate_limit_windows"`
}

type tokenCounts struct {
	Ephemeral int `json:"ephemeral"`
	Session   int `json:"session"`
}

type peerSummary struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
}

type resetLimitsRequest struct {
	Route      string `json:"route"`
	Identifier string `json:"identifier,omitempty"`
}

type resetLimitsResult struct {
	Route   string `json:"route"`
	Cleared int    `json:"cleared"`
}

type invalidateResult struct {
	Invalidated int `json:"invalidated"`
}

type adminKeyPair struct {
	Key  string `json:"key"`
	Hash string `json:"hash"`
}
