package service

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest("GET", "/api/calendar/stats", 200, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveDBQuery("study_sessions.create_batch", 4*time.Millisecond)
	m.RecordSessionsPlanned(5, 2)
	m.RecordEmail("exam_reminder", nil)
	m.RecordEmail("exam_reminder", errors.New("smtp down"))

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.Equal(t, uint64(5), snap.SessionsPlanned)
	assert.Equal(t, uint64(2), snap.DegradedSlots)
	assert.Equal(t, uint64(1), snap.EmailsSent)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestMetricsServiceHandlerExposesDomainCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordSyncedEvents("stored", 3)
	m.RecordJob("calendar_sync", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `calendar_sync_events_total{outcome="stored"} 3`)
	assert.Contains(t, string(body), `agent_job_runs_total{job="calendar_sync",status="success"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.RecordSessionsPlanned(1, 0)
	m.RecordEmail("test", nil)
	m.RecordJob("x", nil)
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceTracksQueue(t *testing.T) {
	m := NewMetricsService()
	require.NoError(t, m.TrackQueue("agent", func() int { return 2 }))
	require.NoError(t, m.TrackQueue("agent", func() int { return 9 }))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `companion_queue_pending_jobs{queue="agent"} 2`)
}
