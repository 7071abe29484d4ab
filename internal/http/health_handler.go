package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/easeemail/easeemail/internal/domain"
)

// readinessBudget bounds how long dependency pings may take in total
const readinessBudget = 3 * time.Second

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db     *sql.DB
	broker domain.Broker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *sql.DB, broker domain.Broker) *HealthHandler {
	return &HealthHandler{
		db:     db,
		broker: broker,
	}
}

// RegisterRoutes registers the health routes
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health/live", h.handleLive)
	mux.HandleFunc("GET /health/ready", h.handleReady)
}

// handleLive reports process liveness and always succeeds
func (h *HealthHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady pings the store and the broker within the readiness budget and
// reports per-dependency errors on failure.
func (h *HealthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessBudget)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"broker":   "ok",
	}
	healthy := true

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.broker.Ping(ctx); err != nil {
		checks["broker"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	body := map[string]interface{}{"status": "ok", "checks": checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	}
	writeJSON(w, status, body)
}
