package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

// LeadHandler serves the board and lead list views
type LeadHandler struct {
	leadService            *service.LeadService
	boardService           *service.BoardService
	includeArchivedDefault bool
	logger                 *zap.Logger
}

func NewLeadHandler(leadService *service.LeadService, boardService *service.BoardService, includeArchivedDefault bool, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{
		leadService:            leadService,
		boardService:           boardService,
		includeArchivedDefault: includeArchivedDefault,
		logger:                 logger,
	}
}

// Board handles GET /board
func (h *LeadHandler) Board(w http.ResponseWriter, r *http.Request) {
	includeArchived, err := queryBool(r, "includeArchived", h.includeArchivedDefault)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	board, err := h.boardService.Board(r.Context(), includeArchived)
	if err != nil {
		handleError(w, r, h.logger, "board", err)
		return
	}
	respondJSON(w, http.StatusOK, board)
}

// List handles GET /leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.LeadFilter{Query: q.Get("q")}

	var err error
	if filter.IncludeArchived, err = queryBool(r, "includeArchived", h.includeArchivedDefault); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := q.Get("status"); raw != "" {
		if filter.Status, err = domain.ParseLeadStatus(raw); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if raw := q.Get("priority"); raw != "" {
		if filter.Priority, err = domain.ParseLeadPriority(raw); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	leads, err := h.leadService.List(r.Context(), filter)
	if err != nil {
		handleError(w, r, h.logger, "list leads", err)
		return
	}
	respondJSON(w, http.StatusOK, domain.LeadListResponse{Leads: leads, Total: len(leads)})
}

// Get handles GET /leads/{id}
func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leadService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.logger, "get lead", err)
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// Create handles POST /leads
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lead, err := h.leadService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, r, h.logger, "create lead", err)
		return
	}
	w.Header().Set("Location", "/api/v1/leads/"+lead.ID)
	respondJSON(w, http.StatusCreated, lead)
}

// Update handles PUT /leads/{id}. Status changes go through transitions.
func (h *LeadHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateLeadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lead, err := h.leadService.Update(r.Context(), chi.URLParam(r, "id"), &req)
	if err != nil {
		handleError(w, r, h.logger, "update lead", err)
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// Refresh handles POST /refresh
func (h *LeadHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.leadService.Refresh(r.Context())
	if err != nil {
		handleError(w, r, h.logger, "refresh", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"leads":     len(snap.Leads),
		"fetchedAt": snap.FetchedAt,
	})
}
