package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-companion-api/internal/dto"
	"github.com/noah-isme/study-companion-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{"postgres": healthy, "mongo": healthy})

	c, rec := newTestContext(http.MethodGet, "/ready", "")
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	handler = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"postgres": healthy,
		"redis":    func(context.Context) error { return errors.New("dial tcp: connection refused") },
	})
	c, rec = newTestContext(http.MethodGet, "/ready", "")
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Dependencies["postgres"])
	assert.Contains(t, body.Dependencies["redis"], "connection refused")
}

func TestMetricsHandlerEndpoints(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordSessionsPlanned(3, 1)
	handler := NewMetricsHandler(metrics, nil)

	c, rec := newTestContext(http.MethodGet, "/metrics", "")
	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "study_sessions_planned_total")

	c, rec = newTestContext(http.MethodGet, "/api/system/metrics", "")
	handler.Snapshot(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newTestContext(http.MethodGet, "/health", "")
	handler.Health(c)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	c, rec = newTestContext(http.MethodGet, "/metrics", "")
	NewMetricsHandler(nil, nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
