package handlers

import (
	"net/http"
	"time"
)

// HealthHandler reports liveness and which upstreams are configured.
type HealthHandler struct {
	redditConnected bool
	finterConnected bool
}

func NewHealthHandler(redditConnected, finterConnected bool) *HealthHandler {
	return &HealthHandler{redditConnected: redditConnected, finterConnected: finterConnected}
}

func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"reddit_connected": h.redditConnected,
		"finter_connected": h.finterConnected,
	})
}
