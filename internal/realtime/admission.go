package realtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

const (
	// Subprotocol is the WebSocket subprotocol spoken by the hub.
	Subprotocol = "pairmesh.v1"

	// TokenSubprotocolPrefix carries a session credential inside
	// Sec-WebSocket-Protocol for clients that cannot set headers.
	TokenSubprotocolPrefix = "pairmesh.token."

	// TokenQueryParam carries a session credential in the query string.
	TokenQueryParam = "token"
)

// SessionValidator resolves session credentials.
type SessionValidator interface {
	Session(ctx context.Context, value string) (*domain.Token, error)
}

// Admission is the accepted outcome of a handshake check.
type Admission struct {
	Role   domain.Role
	PeerID string

	// protocol is the token subprotocol offered by the client, if any.
	protocol string
}

// Credential extracts the session credential from a handshake request.
// The query parameter wins over the Authorization header, which wins over
// a token subprotocol. protocol is the offered subprotocol that carried the
// credential, if that was the source. present reports that the client
// offered a credential at all; value is empty when it was unusable, such
// as an empty token parameter or a non-Bearer Authorization scheme.
func Credential(r *http.Request) (value, protocol string, present bool) {
	if q := r.URL.Query(); q.Has(TokenQueryParam) {
		return q.Get(TokenQueryParam), "", true
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, rest, _ := strings.Cut(auth, " ")
		if strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest), "", true
		}
		return "", "", true
	}
	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(header, ",") {
			p = strings.TrimSpace(p)
			if v, ok := strings.CutPrefix(p, TokenSubprotocolPrefix); ok {
				return v, p, true
			}
		}
	}
	return "", "", false
}

// Admit decides whether r may open a realtime connection. A request without
// a credential is admitted as the primary. A request with a credential must
// present a live session token; an unusable one is refused like an unknown
// one.
func (h *Hub) Admit(r *http.Request) (*Admission, error) {
	if h.Closed() {
		return nil, domain.ErrServiceUnavailable
	}

	value, protocol, present := Credential(r)
	if !present {
		return &Admission{Role: domain.RolePrimary}, nil
	}
	if value == "" {
		h.metrics.RecordAdmission("rejected")
		return nil, domain.ErrSessionInvalid
	}

	tok, err := h.sessions.Session(r.Context(), value)
	if err != nil {
		h.metrics.RecordAdmission("rejected")
		return nil, err
	}
	return &Admission{
		Role:     domain.RoleSecondary,
		PeerID:   tok.PeerID,
		protocol: protocol,
	}, nil
}
