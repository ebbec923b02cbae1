// Package handler provides the ops HTTP surface of an eventgen run.
package handler

import (
	"net/http"

	"github.com/capitalize-ai/conversation-analytics/internal/service"
)

// ReadinessCheck reports whether a dependency of the run is usable.
type ReadinessCheck struct {
	Name  string
	Ready func() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	progress *service.Progress
	checks   []ReadinessCheck
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(progress *service.Progress, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		progress: progress,
		checks:   checks,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The run is ready once its inputs are loaded and every check
// passes.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil || !h.progress.Loaded() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "inputs not loaded",
		})
		return
	}
	for _, c := range h.checks {
		if !c.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": c.Name + " not connected",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Status handles GET /status with a snapshot of the run's progress.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		writeJSON(w, http.StatusOK, service.ProgressSnapshot{})
		return
	}
	writeJSON(w, http.StatusOK, h.progress.Snapshot())
}
