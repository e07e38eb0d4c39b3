package handler

import (
	"net/http"

	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	dashboardService       *service.DashboardService
	includeArchivedDefault bool
	logger                 *zap.Logger
}

func NewDashboardHandler(dashboardService *service.DashboardService, includeArchivedDefault bool, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboardService:       dashboardService,
		includeArchivedDefault: includeArchivedDefault,
		logger:                 logger,
	}
}

// Stats handles GET /dashboard/stats. The backend's KPIs are passed through.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.dashboardService.Stats(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		handleError(w, r, h.logger, "dashboard stats", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// PipelineMetrics handles GET /metrics/pipeline, computed locally from the snapshot
func (h *DashboardHandler) PipelineMetrics(w http.ResponseWriter, r *http.Request) {
	includeArchived, err := queryBool(r, "includeArchived", h.includeArchivedDefault)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics, err := h.dashboardService.PipelineMetrics(r.Context(), r.URL.Query().Get("range"), includeArchived)
	if err != nil {
		handleError(w, r, h.logger, "pipeline metrics", err)
		return
	}
	respondJSON(w, http.StatusOK, metrics)
}
