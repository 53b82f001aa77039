package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/phrazzld/carbonstats/internal/api/shared"
	"github.com/phrazzld/carbonstats/internal/domain"
	"github.com/phrazzld/carbonstats/internal/service"
	"github.com/phrazzld/carbonstats/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubService is a func-field fake of service.ZonalStatsService
type stubService struct {
	SubmitFn  func(ctx context.Context, fc *geojson.FeatureCollection) (uuid.UUID, error)
	GetTaskFn func(ctx context.Context, id uuid.UUID) (task.Task, error)
	submits   int
}

func (s *stubService) Submit(ctx context.Context, fc *geojson.FeatureCollection) (uuid.UUID, error) {
	s.submits++
	if s.SubmitFn == nil {
		return uuid.New(), nil
	}
	return s.SubmitFn(ctx, fc)
}

func (s *stubService) GetTask(ctx context.Context, id uuid.UUID) (task.Task, error) {
	if s.GetTaskFn == nil {
		return task.Task{}, service.ErrTaskNotFound
	}
	return s.GetTaskFn(ctx, id)
}

const twoFeatures = `{"type":"FeatureCollection","features":[
	{"type":"Feature","id":"a","geometry":{"type":"Point","coordinates":[1,1]},"properties":{}},
	{"type":"Feature","id":"b","geometry":{"type":"Point","coordinates":[2,2]},"properties":{}}
]}`

func newTestRouter(svc service.ZonalStatsService, maxBody int64) http.Handler {
	h := NewZonalStatsHandler(svc, maxBody, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Post("/v1/zonal-stats", h.Submit)
	r.Get("/v1/tasks/{taskID}", h.GetTask)
	r.Get("/v1/echo/{text}", Echo)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestSubmit_Accepted(t *testing.T) {
	id := uuid.New()
	svc := &stubService{SubmitFn: func(_ context.Context, fc *geojson.FeatureCollection) (uuid.UUID, error) {
		require.Len(t, fc.Features, 2)
		assert.Equal(t, "a", fc.Features[0].ID)
		return id, nil
	}}

	w := do(t, newTestRouter(svc, 0), http.MethodPost, "/v1/zonal-stats", twoFeatures)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp SubmitResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, id, resp.TaskID)
	assert.Equal(t, "accepted", resp.Status)
}

func TestSubmit_RejectedBeforeAdmission(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		maxBody int64
		status  int
		message string
	}{
		{"empty body", "", 0, http.StatusBadRequest, "Invalid input"},
		{"whitespace body", "  \n\t", 0, http.StatusBadRequest, "Invalid input"},
		{"malformed json", `{"type":`, 0, http.StatusBadRequest, "not a valid GeoJSON FeatureCollection"},
		{"single feature", `{"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]}}`, 0,
			http.StatusBadRequest, "not a valid GeoJSON FeatureCollection"},
		{"too large", twoFeatures, 16, http.StatusRequestEntityTooLarge, "exceeds 16 bytes"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{}
			w := do(t, newTestRouter(svc, tc.maxBody), http.MethodPost, "/v1/zonal-stats", tc.body)

			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, decodeError(t, w).Error, tc.message)
			assert.Zero(t, svc.submits, "no task may be created")
		})
	}
}

func TestSubmit_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		retryAfter string
	}{
		{"overloaded", domain.ErrOverloaded, http.StatusServiceUnavailable, "30"},
		{"shutting down", service.ErrShuttingDown, http.StatusServiceUnavailable, ""},
		{"unexpected", service.NewServiceError("zonal_stats", "submit", errors.New("/srv/secret/path broke")),
			http.StatusInternalServerError, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubService{SubmitFn: func(context.Context, *geojson.FeatureCollection) (uuid.UUID, error) {
				return uuid.Nil, tc.err
			}}
			w := do(t, newTestRouter(svc, 0), http.MethodPost, "/v1/zonal-stats", twoFeatures)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.retryAfter, w.Header().Get("Retry-After"))
			assert.NotContains(t, w.Body.String(), "/srv/secret")
		})
	}
}

func TestGetTask(t *testing.T) {
	id := uuid.New()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mean := 4.5

	tasks := map[uuid.UUID]task.Task{
		id: {
			ID: id, Status: task.StatusCompleted, Message: "zonal statistics completed",
			Result:    []domain.StatisticRecord{{FeatureIndex: 0, Count: 2, Mean: &mean}},
			CreatedAt: now, UpdatedAt: now.Add(time.Second),
		},
	}
	failedID := uuid.New()
	tasks[failedID] = task.Task{
		ID: failedID, Status: task.StatusFailed, Message: "feature collection has no features",
		Error:     &domain.TaskError{Kind: domain.ErrorKindInvalidInput, Message: "feature collection has no features"},
		CreatedAt: now, UpdatedAt: now,
	}

	svc := &stubService{GetTaskFn: func(_ context.Context, id uuid.UUID) (task.Task, error) {
		tk, ok := tasks[id]
		if !ok {
			return task.Task{}, service.ErrTaskNotFound
		}
		return tk, nil
	}}
	router := newTestRouter(svc, 0)

	t.Run("completed", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/tasks/"+id.String(), "")
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "completed", body["status"])
		assert.NotContains(t, body, "error")
		result := body["result"].([]any)
		require.Len(t, result, 1)
		record := result[0].(map[string]any)
		assert.Equal(t, 4.5, record["mean"])
		assert.Nil(t, record["min"])
	})

	t.Run("failed", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/tasks/"+failedID.String(), "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp TaskResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "failed", resp.Status)
		assert.Nil(t, resp.Result)
		require.NotNil(t, resp.Error)
		assert.Equal(t, domain.ErrorKindInvalidInput, resp.Error.Kind)
	})

	t.Run("unknown", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/tasks/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Task not found", decodeError(t, w).Error)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := do(t, router, http.MethodGet, "/v1/tasks/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestEcho(t *testing.T) {
	w := do(t, newTestRouter(&stubService{}, 0), http.MethodGet, "/v1/echo/hello", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Echo: hello", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.ErrOverloaded, http.StatusServiceUnavailable},
		{service.ErrShuttingDown, http.StatusServiceUnavailable},
		{service.ErrTaskNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.status, MapErrorToStatusCode(tc.err))
			assert.NotEmpty(t, GetSafeErrorMessage(tc.err))
		})
	}
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}
