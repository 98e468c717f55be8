package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"pbrpulse/internal/services"
	"pbrpulse/internal/storage"
)

func newHealthRouter(buckets storage.Buckets) (http.Handler, *HealthHandler) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	handler := NewHealthHandler(services.NewHealthService(buckets, logger), logger)
	return handler.Routes(), handler
}

func memoryBuckets() storage.Buckets {
	return storage.Buckets{
		Raw:    storage.NewMemoryBucket(),
		Merged: storage.NewMemoryBucket(),
		Manual: storage.NewMemoryBucket(),
	}
}

func TestHealthHandler_HealthCheck(t *testing.T) {
	router, _ := newHealthRouter(memoryBuckets())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
	assert.Contains(t, rec.Body.String(), `"raw_bucket":"ok"`)
}

func TestHealthHandler_ReadinessCheck(t *testing.T) {
	router, _ := newHealthRouter(memoryBuckets())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ready":true`)
}

func TestHealthHandler_LivenessCheck(t *testing.T) {
	router, _ := newHealthRouter(memoryBuckets())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alive":true`)
}

func TestHealthHandler_Version(t *testing.T) {
	_, handler := newHealthRouter(memoryBuckets())

	rec := httptest.NewRecorder()
	handler.Version(rec, httptest.NewRequest("GET", "/api/version", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"pbr-pulse"`)
	assert.Contains(t, rec.Body.String(), `"version":`)
}
