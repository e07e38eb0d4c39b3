package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/straye-as/pipeline-gateway/internal/upstream"
)

var validate = validator.New()

// validateStruct runs the struct's validate tags. Failures wrap both
// ErrInvalidInput and the validator.ValidationErrors so callers can report
// individual fields.
func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// translate maps backend errors onto service errors while keeping the
// original in the chain.
func translate(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, upstream.ErrUnauthorized), errors.Is(err, upstream.ErrNoToken):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	var apiErr *upstream.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 409 {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}

// BackendMessage returns the message the backend gave for a rejected call.
// Transport failures have no backend message and return a generic one;
// other errors return their own text.
func BackendMessage(err error) string {
	var apiErr *upstream.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if errors.Is(err, upstream.ErrUnavailable) {
		return "The CRM backend could not be reached. Please try again."
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
