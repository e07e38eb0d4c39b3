package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/straye-as/pipeline-gateway/internal/domain"
	"github.com/straye-as/pipeline-gateway/internal/http/middleware"
	"github.com/straye-as/pipeline-gateway/internal/service"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies; invoices with many items stay well below it
const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError sends a problem document with the given status
func respondWithError(w http.ResponseWriter, status int, message string) {
	domain.WriteProblem(w, domain.NewAPIError(status, message))
}

// respondValidationError sends a 400 with one message per failed field
func respondValidationError(w http.ResponseWriter, ve validator.ValidationErrors) {
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[toJSONFieldName(fe.Field())] = formatValidationError(fe)
	}
	domain.WriteProblem(w, &domain.APIError{
		Type:   domain.ErrorTypeValidation,
		Title:  "Validation Error",
		Status: http.StatusBadRequest,
		Detail: "One or more fields failed validation",
		Errors: fields,
	})
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", toJSONFieldName(fe.Field()))
	case "max":
		return fmt.Sprintf("Must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("Must be at least %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", fe.Param())
	case "eqfield":
		return fmt.Sprintf("Must match %s", toJSONFieldName(fe.Param()))
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its camelCase JSON name
func toJSONFieldName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// decodeJSON reads a single JSON object from the request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request body"
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			msg = "Request body is required"
		case errors.As(err, &maxErr):
			msg = "Request body is too large"
		default:
			msg = fmt.Sprintf("Invalid request body: %v", err)
		}
		respondWithError(w, http.StatusBadRequest, msg)
		return false
	}
	return true
}

// queryBool parses a boolean query parameter; absent means def
func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}

// statusFor maps service and backend errors to an HTTP status and message
func statusFor(err error) (int, string) {
	var apiErr *upstream.Error
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrTransitionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrTransitionInFlight),
		errors.Is(err, service.ErrTransitionFinished),
		errors.Is(err, service.ErrNotAwaitingConfirmation):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, "The CRM backend rejected the credentials"
	case errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return apiErr.StatusCode, apiErr.Message
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiErr.Message
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, upstream.ErrUnavailable):
		return http.StatusServiceUnavailable, service.BackendMessage(err)
	case errors.Is(err, service.ErrStorageDisabled):
		return http.StatusServiceUnavailable, err.Error()
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}

// handleError writes the problem response for err and logs server-side failures
func handleError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, op string, err error) {
	var ve validator.ValidationErrors
	if errors.Is(err, service.ErrInvalidInput) && errors.As(err, &ve) {
		respondValidationError(w, ve)
		return
	}

	status, msg := statusFor(err)
	if status >= 500 {
		logger.Error(op+" failed",
			zap.String("request_id", middleware.RequestID(r.Context())),
			zap.Error(err),
		)
	}
	respondWithError(w, status, msg)
}
