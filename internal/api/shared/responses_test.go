package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/carbonstats/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondWithJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()

	RespondWithJSON(w, req, http.StatusAccepted, map[string]string{"status": "accepted"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"accepted"}`, w.Body.String())
}

func TestRespondWithErrorIncludesTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(SetTraceID(req.Context(), "trace-123"))
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusNotFound, "Task not found")

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", resp.Error)
	assert.Equal(t, "trace-123", resp.TraceID)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		opts      []ResponseOption
		wantLevel string
	}{
		{"server error logs at error", http.StatusInternalServerError, nil, "ERROR"},
		{"overload logs at warn", http.StatusServiceUnavailable, []ResponseOption{WithRetryAfter(7)}, "WARN"},
		{"client error logs at debug", http.StatusBadRequest, nil, "DEBUG"},
		{"elevated client error logs at warn", http.StatusBadRequest, []ResponseOption{WithElevatedLogLevel()}, "WARN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			log, buf := logger.NewTestLogger()
			req := httptest.NewRequest(http.MethodPost, "/v1/zonal-stats", nil)
			req = req.WithContext(logger.WithLogger(context.Background(), log))
			w := httptest.NewRecorder()

			cause := errors.New("open /var/lib/carbon/work/123/layer.sqlite: disk full")
			RespondWithErrorAndLog(w, req, tc.status, "Something failed", cause, tc.opts...)

			assert.Equal(t, tc.status, w.Code)
			assert.NotContains(t, w.Body.String(), "/var/lib")

			entries, err := buf.GetLogEntries()
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, tc.wantLevel, entries[0]["level"])
			assert.NotContains(t, entries[0]["error"], "/var/lib")
		})
	}
}

func TestWithRetryAfterSetsHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/zonal-stats", nil)
	w := httptest.NewRecorder()

	RespondWithErrorAndLog(w, req, http.StatusServiceUnavailable, "busy", nil, WithRetryAfter(30))

	assert.Equal(t, "30", w.Header().Get("Retry-After"))
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))

	ctx := SetTraceID(context.Background(), "")
	generated := GetTraceID(ctx)
	assert.Len(t, generated, TraceIDLength*2)
	assert.NotEqual(t, generated, GetTraceID(SetTraceID(context.Background(), "")))

	assert.Equal(t, "given", GetTraceID(SetTraceID(context.Background(), "given")))
	assert.Len(t, generateFallbackTraceID(), TraceIDLength*2)
}
