package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

// TeamHandler serves team members and the caller's own profile
type TeamHandler struct {
	teamService    *service.TeamService
	profileService *service.ProfileService
	logger         *zap.Logger
}

func NewTeamHandler(teamService *service.TeamService, profileService *service.ProfileService, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{teamService: teamService, profileService: profileService, logger: logger}
}

func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.teamService.List(r.Context())
	if err != nil {
		handleError(w, r, h.logger, "list team", err)
		return
	}
	respondJSON(w, http.StatusOK, members)
}

func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateTeamMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	member, err := h.teamService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, "create team member", err)
		return
	}
	respondJSON(w, http.StatusCreated, member)
}

func (h *TeamHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateTeamMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	member, err := h.teamService.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, r, h.logger, "update team member", err)
		return
	}
	respondJSON(w, http.StatusOK, member)
}

func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	msg, err := h.teamService.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, "delete team member", err)
		return
	}
	respondJSON(w, http.StatusOK, domain.MessageResponse{Message: msg})
}

func (h *TeamHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.Get(r.Context())
	if err != nil {
		handleError(w, r, h.logger, "get profile", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *TeamHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.profileService.Update(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, "update profile", err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (h *TeamHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.profileService.ChangePassword(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, "change password", err)
		return
	}
	respondJSON(w, http.StatusOK, domain.MessageResponse{Message: msg})
}
