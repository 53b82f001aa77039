package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/carbonstats/internal/api/shared"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
)

// Echo handles GET /v1/echo/{text}, a synchronous liveness probe that
// bypasses admission control.
func Echo(w http.ResponseWriter, r *http.Request) {
	text := chi.URLParam(r, "text")
	if err := shared.ValidateRequest(echoPath{Text: text}); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid echo text", err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("Echo: " + text)); err != nil {
		logger.FromContext(r.Context()).Error("failed to write echo response", "error", err)
	}
}
