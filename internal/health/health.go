// Package health provides health check endpoints for the sync service.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/IlyaTsupryk/ggrc-core/internal/store"
)

// HealthCheck manages health check functionality.
type HealthCheck struct {
	pool   *pgxpool.Pool
	idem   store.IdempotencyStore
	logger *zap.Logger
}

// NewHealthCheck creates a new HealthCheck instance.
func NewHealthCheck(pool *pgxpool.Pool, idem store.IdempotencyStore, logger *zap.Logger) *HealthCheck {
	return &HealthCheck{
		pool:   pool,
		idem:   idem,
		logger: logger,
	}
}

// LivenessResponse represents the response for the liveness check.
type LivenessResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse represents the response for the readiness check.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// LivenessHandler handles GET /health requests.
// Returns 200 OK if the process is running.
func (hc *HealthCheck) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	resp := LivenessResponse{
		Status: "healthy",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// ReadinessHandler handles GET /ready requests.
// Returns 200 OK if both backing stores answer a ping.
func (hc *HealthCheck) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"postgres": "healthy",
		"redis":    "healthy",
	}
	var failure error

	if err := hc.pool.Ping(ctx); err != nil {
		checks["postgres"] = "unhealthy"
		failure = err
	}
	if err := hc.idem.Ping(ctx); err != nil {
		checks["redis"] = "unhealthy"
		if failure == nil {
			failure = err
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if failure != nil {
		hc.logger.Warn("readiness check failed", zap.Error(failure))
		resp := ReadinessResponse{
			Status: "not_ready",
			Checks: checks,
			Error:  failure.Error(),
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(resp)
		return
	}

	resp := ReadinessResponse{
		Status: "ready",
		Checks: checks,
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
