package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/carbonstats/internal/api/shared"
	"github.com/phrazzld/carbonstats/internal/domain"
)

// getPathUUID extracts and validates a UUID path parameter. Errors wrap
// domain.ErrInvalidInput.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if err := shared.ValidateRequest(taskPath{TaskID: raw}); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format: %w", domain.ErrInvalidInput, paramName, err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format: %w", domain.ErrInvalidInput, paramName, err)
	}
	return id, nil
}

// handleAPIError maps err to a status code and safe message and writes the
// error response.
func handleAPIError(w http.ResponseWriter, r *http.Request, err error, opts ...shared.ResponseOption) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err, opts...)
}
