package handler

import (
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"go.uber.org/zap"
)

// ReportHandler exports and downloads pipeline reports
type ReportHandler struct {
	reportService          *service.ReportService
	includeArchivedDefault bool
	logger                 *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, includeArchivedDefault bool, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{reportService: reportService, includeArchivedDefault: includeArchivedDefault, logger: logger}
}

// Export handles POST /reports/pipeline
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	includeArchived, err := queryBool(r, "includeArchived", h.includeArchivedDefault)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.reportService.Export(r.Context(), includeArchived)
	if err != nil {
		handleError(w, r, h.logger, "export report", err)
		return
	}
	w.Header().Set("Location", "/api/v1/"+report.Path)
	respondJSON(w, http.StatusCreated, report)
}

// List handles GET /reports
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reportService.List(r.Context())
	if err != nil {
		handleError(w, r, h.logger, "list reports", err)
		return
	}
	respondJSON(w, http.StatusOK, reports)
}

// Download handles GET /reports/{name}
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	name := "reports/" + chi.URLParam(r, "name")
	rc, err := h.reportService.Open(r.Context(), name)
	if err != nil {
		handleError(w, r, h.logger, "download report", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(name)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("report download interrupted", zap.String("name", name), zap.Error(err))
	}
}
