package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/api/shared"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/platform/logger"
	"github.com/phrazzld/carbonstats/internal/service"
	"github.com/phrazzld/carbonstats/internal/task"
)

// DefaultMaxBodyBytes bounds a submission when no limit is configured
const DefaultMaxBodyBytes int64 = 100_000_000

// ZonalStatsHandler serves the submission and polling endpoints
type ZonalStatsHandler struct {
	svc          service.ZonalStatsService
	maxBodyBytes int64
	retryAfter   int
	logger       *slog.Logger
}

// NewZonalStatsHandler creates a new ZonalStatsHandler. retryAfter is the
// Retry-After value, in seconds, sent with overload responses.
func NewZonalStatsHandler(
	svc service.ZonalStatsService,
	maxBodyBytes int64,
	retryAfter int,
	logger *slog.Logger,
) *ZonalStatsHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ZonalStatsHandler{
		svc:          svc,
		maxBodyBytes: maxBodyBytes,
		retryAfter:   retryAfter,
		logger:       logger.With("component", "zonal_stats_handler"),
	}
}

// Submit handles POST /v1/zonal-stats. Bodies that are empty or not a
// FeatureCollection are rejected before admission, so no task is created
// for them.
func (h *ZonalStatsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			shared.RespondWithErrorAndLog(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		handleAPIError(w, r, fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrEmptyContent))
		return
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Request body is not a valid GeoJSON FeatureCollection",
			fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}

	logger.FromContextOrDefault(r.Context(), h.logger).Debug("submission parsed",
		"features", len(fc.Features),
		"bytes", len(body))

	id, err := h.svc.Submit(r.Context(), fc)
	if err != nil {
		var opts []shared.ResponseOption
		if errors.Is(err, domain.ErrOverloaded) {
			opts = append(opts, shared.WithRetryAfter(h.retryAfter))
		}
		handleAPIError(w, r, err, opts...)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitResponse{
		TaskID: id,
		Status: string(task.StatusAccepted),
	})
}

// GetTask handles GET /v1/tasks/{taskID}.
func (h *ZonalStatsHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "taskID")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task ID", err)
		return
	}

	t, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		handleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(t))
}
