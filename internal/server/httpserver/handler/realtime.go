package handler

import "net/http"

// handleRealtime handles GET /v1/realtime. Admission is decided before the
// upgrade so a rejected credential gets a plain 401 envelope.
func (h *Handler) handleRealtime(w http.ResponseWriter, r *http.Request) {
	adm, err := h.hub.Admit(r)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.hub.Accept(w, r, adm)
}
