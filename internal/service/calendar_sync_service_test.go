package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/config"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type eventSourceStub struct {
	items []models.CalendarItem
	err   error
	from  time.Time
	to    time.Time
}

func (s *eventSourceStub) ListEvents(_ context.Context, from, to time.Time, _ int64) ([]models.CalendarItem, error) {
	s.from, s.to = from, to
	return s.items, s.err
}

// eventMirrorStub keeps mirrored events in memory, deduplicating on
// details and datetime.
type eventMirrorStub struct {
	events       []models.CalendarEvent
	insertErr    map[string]error
	listErr      error
	markErr      error
	processed    []primitive.ObjectID
	reminded     []primitive.ObjectID
	pendingCalls int
}

func (m *eventMirrorStub) InsertEvent(_ context.Context, evt *models.CalendarEvent) (bool, error) {
	if err := m.insertErr[evt.Details]; err != nil {
		return false, err
	}
	for _, existing := range m.events {
		if existing.Details == evt.Details && existing.Datetime.Equal(evt.Datetime) {
			return false, nil
		}
	}
	evt.ID = primitive.NewObjectID()
	m.events = append(m.events, *evt)
	return true, nil
}

func (m *eventMirrorStub) ListAll(_ context.Context, limit int64) ([]models.CalendarEvent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if limit > 0 && int(limit) < len(m.events) {
		return m.events[:limit], nil
	}
	return m.events, nil
}

func (m *eventMirrorStub) ListUnprocessed(_ context.Context) ([]models.CalendarEvent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.CalendarEvent
	for _, e := range m.events {
		if e.IsAssignment && !e.Processed {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *eventMirrorStub) ListUpcoming(_ context.Context, now time.Time, days int) ([]models.CalendarEvent, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.CalendarEvent
	for _, e := range m.events {
		if e.IsAssignment && !e.ReminderSent && !e.Datetime.Before(now) && !e.Datetime.After(now.AddDate(0, 0, days)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *eventMirrorStub) ListPendingReminders(_ context.Context, now time.Time, days int) ([]models.CalendarEvent, error) {
	m.pendingCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.CalendarEvent
	for _, e := range m.events {
		if e.IsAssignment && !e.ReminderSent && !e.Datetime.After(now.AddDate(0, 0, days)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *eventMirrorStub) MarkProcessed(_ context.Context, id primitive.ObjectID, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.processed = append(m.processed, id)
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].Processed = true
			m.events[i].ProcessedAt = &at
		}
	}
	return nil
}

func (m *eventMirrorStub) MarkReminderSent(_ context.Context, id primitive.ObjectID, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.reminded = append(m.reminded, id)
	for i := range m.events {
		if m.events[i].ID == id {
			m.events[i].ReminderSent = true
			m.events[i].ReminderSentAt = &at
		}
	}
	return nil
}

func (m *eventMirrorStub) Count(_ context.Context) (int64, error) {
	return int64(len(m.events)), m.listErr
}

func (m *eventMirrorStub) CountUnprocessed(ctx context.Context) (int64, error) {
	events, err := m.ListUnprocessed(ctx)
	return int64(len(events)), err
}

func (m *eventMirrorStub) add(details string, due time.Time, assignment bool) primitive.ObjectID {
	evt := models.CalendarEvent{ID: primitive.NewObjectID(), Details: details, Datetime: due, IsAssignment: assignment}
	m.events = append(m.events, evt)
	return evt.ID
}

// memoryCache is a responseCache storing JSON copies.
type memoryCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

var syncNow = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func newTestSyncService(src calendarEventSource, mirror *eventMirrorStub, cache responseCache) *CalendarSyncService {
	return NewCalendarSyncService(src, mirror, cache, NewMetricsService(), config.CalendarConfig{SyncDaysAhead: 90, MaxResults: 100}, nil).
		WithClock(func() time.Time { return syncNow })
}

func TestCalendarSyncStoresAndDeduplicates(t *testing.T) {
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	src := &eventSourceStub{items: []models.CalendarItem{
		{ID: "e1", Summary: "Machine Learning Exam", Start: due},
		{ID: "e2", Summary: "Dentist", Start: due.Add(2 * time.Hour)},
		{ID: "e3", Summary: "Broken write", Start: due},
	}}
	mirror := &eventMirrorStub{insertErr: map[string]error{"Broken write": errors.New("write conflict")}}
	mirror.add("Machine Learning Exam", due, true)
	cache := newMemoryCache()
	svc := newTestSyncService(src, mirror, cache)

	stats, err := svc.Sync(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, syncNow, src.from)
	assert.Equal(t, syncNow.AddDate(0, 0, 90), src.to)
	assert.Equal(t, 3, stats.Fetched)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Assignments)
	assert.Equal(t, int64(1), stats.Unprocessed)
	assert.Equal(t, []string{calendarCachePattern}, cache.invalidated)

	require.Len(t, mirror.events, 2)
	assert.Equal(t, "Dentist", mirror.events[1].Details)
	assert.False(t, mirror.events[1].IsAssignment)
}

func TestCalendarSyncFlagsAssignments(t *testing.T) {
	src := &eventSourceStub{items: []models.CalendarItem{
		{ID: "e1", Summary: "Physics quiz", Start: syncNow.AddDate(0, 0, 2)},
	}}
	mirror := &eventMirrorStub{}
	svc := newTestSyncService(src, mirror, nil)

	stats, err := svc.Sync(context.Background(), 14)
	require.NoError(t, err)
	assert.Equal(t, syncNow.AddDate(0, 0, 14), src.to)
	assert.Equal(t, 1, stats.Assignments)
	require.Len(t, mirror.events, 1)
	assert.True(t, mirror.events[0].IsAssignment)
	assert.Equal(t, "e1", mirror.events[0].GoogleEventID)
}

func TestCalendarSyncSourceUnavailable(t *testing.T) {
	svc := newTestSyncService(&eventSourceStub{err: errors.New("timeout")}, &eventMirrorStub{}, nil)
	_, err := svc.Sync(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCalendarUnavailable))

	unconfigured := newTestSyncService(nil, &eventMirrorStub{}, nil)
	_, err = unconfigured.Sync(context.Background(), 0)
	assert.True(t, errors.Is(err, appErrors.ErrCalendarUnavailable))
}

func TestCalendarStatsCached(t *testing.T) {
	mirror := &eventMirrorStub{}
	mirror.add("Exam", syncNow.AddDate(0, 0, 3), true)
	mirror.add("Lunch", syncNow.AddDate(0, 0, 1), false)
	cache := newMemoryCache()
	svc := newTestSyncService(nil, mirror, cache)

	stats, hit, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int64(2), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.UnprocessedAssignments)

	mirror.add("Essay due", syncNow.AddDate(0, 0, 5), true)
	stats, hit, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(2), stats.TotalEvents)
}

func TestCalendarListings(t *testing.T) {
	mirror := &eventMirrorStub{}
	mirror.add("Exam soon", syncNow.AddDate(0, 0, 3), true)
	mirror.add("Exam later", syncNow.AddDate(0, 0, 20), true)
	mirror.add("Yesterday quiz", syncNow.AddDate(0, 0, -1), true)
	svc := newTestSyncService(nil, mirror, newMemoryCache())

	upcoming, hit, err := svc.ListUpcoming(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Exam soon", upcoming[0].Details)

	_, hit, err = svc.ListUpcoming(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, hit)

	unprocessed, err := svc.ListUnprocessed(context.Background())
	require.NoError(t, err)
	assert.Len(t, unprocessed, 3)

	all, err := svc.ListEvents(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCalendarListingsWrapErrors(t *testing.T) {
	svc := newTestSyncService(nil, &eventMirrorStub{listErr: errors.New("mongo down")}, nil)
	_, err := svc.ListEvents(context.Background(), 0)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
	_, _, err = svc.Stats(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
