package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable is returned when the backend cannot be reached
	ErrUnavailable = errors.New("crm backend unavailable")

	// ErrNotFound matches a 404 from the backend
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized matches a 401 from the backend
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoToken is returned when a call has neither a caller nor a service token
	ErrNoToken = errors.New("no bearer token for backend call")
)

// Error is a non-2xx response. Message is the backend's own error text.
type Error struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Kind returns the status class used for metrics labels
func (e *Error) Kind() string {
	return fmt.Sprintf("%dxx", e.StatusCode/100)
}

// transportError wraps a failure to get any response at all
type transportError struct {
	Operation string
	Err       error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *transportError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}
