package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

type healthStatus struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Time          string `json:"time"`
}

// handleHealth handles GET /health. It answers as long as the process serves
// HTTP at all.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.healthStatus("healthy"))
}

// handleReady handles GET /ready. A draining hub makes the server unready so
// load balancers stop sending new realtime connections.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.hub != nil && h.hub.Closed() {
		writeEnvelope(w, r, http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Code, "draining", h.healthStatus("draining"))
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.healthStatus("ready"))
}

func (h *Handler) healthStatus(status string) healthStatus {
	now := time.Now()
	return healthStatus{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(now.Sub(h.startedAt).Seconds()),
		Time:          now.UTC().Format(time.RFC3339),
	}
}
