package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

// TransitionHandler exposes the drag, confirm and cancel gestures
type TransitionHandler struct {
	transitionService *service.TransitionService
	logger            *zap.Logger
}

func NewTransitionHandler(transitionService *service.TransitionService, logger *zap.Logger) *TransitionHandler {
	return &TransitionHandler{transitionService: transitionService, logger: logger}
}

// transitionFailure is a problem document that also carries the rolled back transition
type transitionFailure struct {
	domain.APIError
	Transition domain.Transition `json:"transition"`
}

// Begin handles POST /leads/{id}/transitions. Returns 202 when the action
// awaits confirmation and 200 once committed.
func (h *TransitionHandler) Begin(w http.ResponseWriter, r *http.Request) {
	var req domain.TransitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.transitionService.Begin(r.Context(), chi.URLParam(r, "id"), &req)
	h.respond(w, r, "begin transition", t, err)
}

// Get handles GET /transitions/{id}
func (h *TransitionHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.transitionService.Get(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, "get transition", err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// List handles GET /transitions
func (h *TransitionHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.transitionService.List())
}

// Confirm handles POST /transitions/{id}/confirm
func (h *TransitionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	t, err := h.transitionService.Confirm(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, "confirm transition", t, err)
}

// Cancel handles POST /transitions/{id}/cancel
func (h *TransitionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, err := h.transitionService.Cancel(chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, "cancel transition", err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (h *TransitionHandler) respond(w http.ResponseWriter, r *http.Request, op string, t domain.Transition, err error) {
	if err != nil {
		if t.State != domain.TransitionRolledBack {
			handleError(w, r, h.logger, op, err)
			return
		}
		status, _ := statusFor(err)
		problem := domain.NewAPIError(status, t.Error)
		respondProblemWithTransition(w, *problem, t)
		return
	}
	if t.State == domain.TransitionAwaitingConfirmation {
		respondJSON(w, http.StatusAccepted, t)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func respondProblemWithTransition(w http.ResponseWriter, problem domain.APIError, t domain.Transition) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(transitionFailure{APIError: problem, Transition: t})
}
