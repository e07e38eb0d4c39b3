package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

// ActivityHandler serves a lead's activity feed
type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, logger: logger}
}

// Feed handles GET /leads/{id}/activities
func (h *ActivityHandler) Feed(w http.ResponseWriter, r *http.Request) {
	feed, err := h.activityService.Feed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, "activity feed", err)
		return
	}
	respondJSON(w, http.StatusOK, feed)
}

// Create handles POST /leads/{id}/activities
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateActivityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	activity, err := h.activityService.Create(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, r, h.logger, "create activity", err)
		return
	}
	respondJSON(w, http.StatusCreated, activity)
}
