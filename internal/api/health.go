package api

import (
	"net/http"

	"github.com/marmos91/filegate/internal/logger"
	"github.com/marmos91/filegate/pkg/store/record"
)

// health serves the liveness and readiness probes.
type health struct {
	repo record.Repository
}

// Liveness reports that the process is up. It never checks dependencies;
// a failing dependency must not get the process restarted.
func (h *health) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness reports whether the service can handle traffic. The record
// repository is the only hard dependency checked here; object storage
// failures surface per request and are not a reason to stop routing.
func (h *health) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		logger.Warn("Readiness check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"reason": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
