package rest

import (
	"net/http"
	"time"
)

// HealthResponse is the liveness body. DeadLetters is omitted when this
// process does not run the dead-letter inspector.
type HealthResponse struct {
	Status      string  `json:"status"`
	Uptime      string  `json:"uptime"`
	DeadLetters *uint64 `json:"deadLetters,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.deadLetters != nil {
		total := h.deadLetters.Total()
		resp.DeadLetters = &total
	}
	writeJSON(w, http.StatusOK, resp)
}
