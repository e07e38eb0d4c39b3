package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// HealthHandler reports liveness and backend reachability
type HealthHandler struct {
	client  *upstream.Client
	version string
	logger  *zap.Logger
}

func NewHealthHandler(client *upstream.Client, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{client: client, version: version, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.client.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"backend": "unreachable",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"backend": "ok",
	})
}
