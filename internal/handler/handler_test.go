package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/conversation-analytics/internal/service"
	"github.com/capitalize-ai/conversation-analytics/pkg/logger"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReady(t *testing.T) {
	progress := service.NewProgress("tag-events")
	connected := false
	h := NewRouter(NewHealthHandler(progress, ReadinessCheck{Name: "nats", Ready: func() bool { return connected }}),
		RouterConfig{RateLimitWindow: time.Minute}, logger.NewNop())

	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/ready").Code)

	progress.MarkLoaded()
	rec := get(t, h, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "nats not connected")

	connected = true
	assert.Equal(t, http.StatusOK, get(t, h, "/ready").Code)
}

func TestStatus(t *testing.T) {
	progress := service.NewProgress("generate-schema")
	progress.MarkLoaded()
	h := NewRouter(NewHealthHandler(progress), RouterConfig{}, logger.NewNop())

	rec := get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap service.ProgressSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "generate-schema", snap.Command)
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Done)
}

func TestStatusRequiresTokenWhenConfigured(t *testing.T) {
	h := NewRouter(NewHealthHandler(service.NewProgress("tag-events")), RouterConfig{JWTSecret: "s"}, logger.NewNop())

	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/status").Code)
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/metrics").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/health").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(NewHealthHandler(nil), RouterConfig{}, logger.NewNop())
	rec := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
