package domain

import (
	"encoding/json"
	"time"
)

// EventType names a realtime wire event.
type EventType string

// Server to client events.
const (
	EventConnectionAccepted EventType = "connection-accepted"
	EventConnectionError    EventType = "connection-error"
	EventPeerList           EventType = "peer-list"
	EventPeerUpdate         EventType = "peer-update"
	EventArtifactInserted   EventType = "artifact-inserted"
	EventHeartbeatPong      EventType = "heartbeat-pong"
)

// Client to server events.
const (
	EventHeartbeatPing EventType = "heartbeat-ping"
	EventRequestState  EventType = "request-state"
)

// Role is the trust level a realtime connection was admitted with.
type Role string

const (
	// RolePrimary is the operator's own client, admitted without a credential.
	RolePrimary Role = "primary"

	// RoleSecondary is a paired client that presented a valid session token.
	RoleSecondary Role = "secondary"
)

// Event is the envelope of every realtime message.
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent encodes payload into an Event. A nil payload yields no payload field.
func NewEvent(typ EventType, payload any) (Event, error) {
	ev := Event{Type: typ}
	if payload == nil {
		return ev, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, ErrInvalidArgument.WithDetails("event payload").WithCause(err)
	}
	ev.Payload = raw
	return ev, nil
}

// ConnectionAccepted is sent once to every admitted connection.
type ConnectionAccepted struct {
	ConnectionID string `json:"connectionId"`
	Role         Role   `json:"role"`
	PeerID       string `json:"peerId,omitempty"`
}

// ConnectionError tells a client why its connection is being closed.
type ConnectionError struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// Peer describes one admitted secondary client.
type Peer struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	ConnectedAt time.Time `json:"connectedAt"`
}

// PeerList carries the current set of admitted peers.
type PeerList struct {
	Peers []Peer `json:"peers"`
}

// PeerUpdate signals that a field of a peer's state changed.
type PeerUpdate struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

// ArtifactInserted announces a newly stored artifact.
type ArtifactInserted struct {
	OwnerID string `json:"ownerId"`
	URL     string `json:"url"`
}
