package handler

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/yndnr/pairmesh-go/internal/core/domain"
)

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.authority.Stats()

	peers := h.hub.Peers()
	summaries := make([]PeerSummary, 0, len(peers))
	for _, p := range peers {
		summaries = append(summaries, PeerSummary{ID: p.ID, ConnectedAt: p.ConnectedAt})
	}

	windows := make(map[string]int, len(h.limiters))
	for name, l := range h.limiters {
		windows[name] = l.Count()
	}

	h.writeJSON(w, r, http.StatusOK, StatusSummary{
		Status:        "running",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt) / time.Second),
		Tokens:        TokenCounts{Ephemeral: stats.Ephemeral, Session: stats.Session},
		Connections:   h.hub.ConnectionCounts(),
		Peers:         summaries,
		RateLimits:    windows,
	})
}

// handleAdminResetLimits handles POST /admin/v1/ratelimit/reset.
func (h *Handler) handleAdminResetLimits(w http.ResponseWriter, r *http.Request) {
	var req ResetLimitsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		WriteError(w, r, domain.ErrBadRequest.WithDetails("invalid request body"))
		return
	}
	if req.Route == "" {
		WriteError(w, r, domain.ErrMissingArgument.WithDetails("route is required"))
		return
	}

	l, ok := h.limiters[req.Route]
	if !ok {
		routes := make([]string, 0, len(h.limiters))
		for name := range h.limiters {
			routes = append(routes, name)
		}
		sort.Strings(routes)
		WriteError(w, r, domain.ErrInvalidArgument.WithDetails("unknown route, expected one of "+strings.Join(routes, ", ")))
		return
	}

	cleared := 0
	if req.Identifier != "" {
		if l.Reset(req.Identifier) {
			cleared = 1
		}
	} else {
		cleared = l.ResetAll()
	}

	h.logger.Info("rate limits reset", "route", req.Route, "identifier", req.Identifier, "cleared", cleared)
	h.writeJSON(w, r, http.StatusOK, ResetLimitsResponse{Route: req.Route, Cleared: cleared})
}

// handleAdminInvalidate handles POST /admin/v1/tokens/invalidate.
func (h *Handler) handleAdminInvalidate(w http.ResponseWriter, r *http.Request) {
	n := h.authority.InvalidateAll(r.Context())
	h.writeJSON(w, r, http.StatusOK, InvalidateResponse{Invalidated: n})
}
