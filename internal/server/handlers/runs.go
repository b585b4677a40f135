package handlers

import (
	"net/http"
	"strconv"

	"reddit-alpha-agent/internal/mcp"
	"reddit-alpha-agent/internal/runlog"
)

type RunsHandler struct {
	store runlog.Store
}

func NewRunsHandler(s runlog.Store) *RunsHandler {
	return &RunsHandler{store: s}
}

// Handle lists recent pipeline runs; ?limit= caps the count (default 20).
func (h *RunsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, badRequest("limit must be a positive integer"))
			return
		}
		limit = min(n, 500)
	}
	runs, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// ToolsHandler answers the discovery listing.
type ToolsHandler struct {
	dispatcher *mcp.Dispatcher
}

func NewToolsHandler(d *mcp.Dispatcher) *ToolsHandler {
	return &ToolsHandler{dispatcher: d}
}

func (h *ToolsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.dispatcher.List()})
}
