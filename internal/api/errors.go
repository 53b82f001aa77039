package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/service"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrOverloaded),
		errors.Is(err, service.ErrShuttingDown):
		return http.StatusServiceUnavailable

	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrOverloaded):
		return "Server is at capacity, retry later"
	case errors.Is(err, service.ErrShuttingDown):
		return "Server is shutting down"
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "Invalid input"
	default:
		return "An unexpected error occurred"
	}
}
