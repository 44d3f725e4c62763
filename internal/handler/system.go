package handler

import (
	"net/http"

	"github.com/chittyapps/chittyauth-app/internal/engine"
)

// SystemHandler serves the operator-facing observability surface: token
// statistics and the recent audit trail.
type SystemHandler struct {
	engine *engine.Engine
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(eng *engine.Engine) *SystemHandler {
	return &SystemHandler{engine: eng}
}

// Stats returns aggregate token counts and recent validation volume.
// GET /api/v1/stats
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeEngineError(w, err, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RecentAudit returns the most recent audit events from the in-process
// mirror, newest first. This is a low-latency operational view; the durable
// audit table remains the system of record.
// GET /api/v1/audit/recent
func (h *SystemHandler) RecentAudit(w http.ResponseWriter, r *http.Request) {
	events := h.engine.RecentAuditEvents()

	limit := clampInt(queryInt(r, "limit", 50), 1, 500)
	if len(events) > limit {
		events = events[:limit]
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}
