package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// maxJSONBody bounds small JSON request bodies.
const maxJSONBody = 4 << 10

// handleIssueEphemeral handles POST /v1/pairing/ephemeral.
func (h *Handler) handleIssueEphemeral(w http.ResponseWriter, r *http.Request) {
	tok, err := h.authority.IssueEphemeral(r.Context())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	host := h.publicHost
	if host == "" {
		host = r.Host
	}

	h.writeJSON(w, r, http.StatusCreated, IssueEphemeralResponse{
		Value:            tok.Value,
		ExpiresAt:        tok.ExpiresAt,
		ExpiresInSeconds: int64(tok.ExpiresAt.Sub(tok.CreatedAt) / time.Second),
		PairingURL:       PairingURL(host, tok.Value),
	})
}

// PairingURL builds the link a pairing code encodes.
func PairingURL(host, value string) string {
	u := url.URL{
		Scheme:   "pairmesh",
		Host:     "pair",
		RawQuery: url.Values{"host": {host}, "token": {value}}.Encode(),
	}
	return u.String()
}

// handleExchange handles POST /v1/pairing/exchange.
func (h *Handler) handleExchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		WriteError(w, r, domain.ErrBadRequest.WithDetails("invalid request body"))
		return
	}
	if req.EphemeralValue == "" {
		WriteError(w, r, domain.ErrMissingArgument.WithDetails("ephemeral_value is required"))
		return
	}

	session, err := h.authority.Exchange(r.Context(), req.EphemeralValue)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, ExchangeResponse{
		SessionValue: session.Value,
		PeerID:       session.PeerID,
		ExpiresAt:    session.ExpiresAt,
	})
}

// handleSession handles GET /v1/pairing/session.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if session == nil {
		WriteError(w, r, domain.ErrSessionInvalid)
		return
	}

	h.writeJSON(w, r, http.StatusOK, SessionResponse{
		Valid:     true,
		PeerID:    session.PeerID,
		ExpiresAt: session.ExpiresAt,
	})
}
