package service

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/config"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

const (
	calendarCachePattern = "calendar:*"
	calendarStatsKey     = "calendar:stats"
)

type calendarEventSource interface {
	ListEvents(ctx context.Context, from, to time.Time, maxResults int64) ([]models.CalendarItem, error)
}

type calendarEventMirror interface {
	InsertEvent(ctx context.Context, evt *models.CalendarEvent) (bool, error)
	ListAll(ctx context.Context, limit int64) ([]models.CalendarEvent, error)
	ListUnprocessed(ctx context.Context) ([]models.CalendarEvent, error)
	ListUpcoming(ctx context.Context, now time.Time, days int) ([]models.CalendarEvent, error)
	Count(ctx context.Context) (int64, error)
	CountUnprocessed(ctx context.Context) (int64, error)
}

type responseCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// CalendarSyncService mirrors provider events into the document store and
// serves listings of the mirror.
type CalendarSyncService struct {
	source  calendarEventSource
	mirror  calendarEventMirror
	cache   responseCache
	metrics *MetricsService
	cfg     config.CalendarConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewCalendarSyncService constructs the sync service. source may be nil when
// no calendar credentials are configured; Sync then reports the calendar as
// unavailable.
func NewCalendarSyncService(source calendarEventSource, mirror calendarEventMirror, cache responseCache, metrics *MetricsService, cfg config.CalendarConfig, logger *zap.Logger) *CalendarSyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SyncDaysAhead <= 0 {
		cfg.SyncDaysAhead = 90
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	return &CalendarSyncService{
		source:  source,
		mirror:  mirror,
		cache:   cache,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the time source.
func (s *CalendarSyncService) WithClock(now func() time.Time) *CalendarSyncService {
	if now != nil {
		s.now = now
	}
	return s
}

// Sync fetches events from now to now+daysAhead and stores those not yet
// mirrored. Per-event mirror failures are counted and skipped.
func (s *CalendarSyncService) Sync(ctx context.Context, daysAhead int) (*models.SyncStats, error) {
	if s.source == nil {
		return nil, appErrors.Clone(appErrors.ErrCalendarUnavailable, "calendar is not configured")
	}
	if daysAhead <= 0 {
		daysAhead = s.cfg.SyncDaysAhead
	}

	now := s.now().UTC()
	items, err := s.source.ListEvents(ctx, now, now.AddDate(0, 0, daysAhead), s.cfg.MaxResults)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrCalendarUnavailable, "failed to fetch calendar events")
	}

	stats := &models.SyncStats{Fetched: len(items), SyncedAt: now}
	for _, item := range items {
		evt := &models.CalendarEvent{
			GoogleEventID: item.ID,
			Details:       item.Summary,
			Description:   item.Description,
			Datetime:      item.Start,
			EndsAt:        item.End,
			AllDay:        item.AllDay,
			IsAssignment:  DetectAssignment(item.Summary),
			CreatedAt:     now,
		}
		inserted, err := s.mirror.InsertEvent(ctx, evt)
		if err != nil {
			stats.Failed++
			s.logger.Warn("mirror calendar event", zap.String("event_id", item.ID), zap.Error(err))
			continue
		}
		if !inserted {
			stats.Duplicates++
			continue
		}
		stats.Stored++
		if evt.IsAssignment {
			stats.Assignments++
			s.logger.Info("assignment detected", zap.String("title", item.Summary), zap.Time("due_at", item.Start))
		}
	}

	if unprocessed, err := s.mirror.CountUnprocessed(ctx); err != nil {
		s.logger.Warn("count unprocessed assignments", zap.Error(err))
	} else {
		stats.Unprocessed = unprocessed
	}

	s.metrics.RecordSyncedEvents("stored", stats.Stored)
	s.metrics.RecordSyncedEvents("duplicate", stats.Duplicates)
	s.metrics.RecordSyncedEvents("failed", stats.Failed)
	s.invalidate(ctx)

	s.logger.Info("calendar sync finished",
		zap.Int("fetched", stats.Fetched),
		zap.Int("stored", stats.Stored),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("assignments", stats.Assignments),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// Stats returns mirror totals. The boolean reports a cache hit.
func (s *CalendarSyncService) Stats(ctx context.Context) (*models.CalendarStats, bool, error) {
	return readThrough(ctx, s.cache, s.logger, calendarStatsKey, func(ctx context.Context) (*models.CalendarStats, error) {
		total, err := s.mirror.Count(ctx)
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to count calendar events")
		}
		unprocessed, err := s.mirror.CountUnprocessed(ctx)
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to count unprocessed assignments")
		}
		return &models.CalendarStats{TotalEvents: total, UnprocessedAssignments: unprocessed, GeneratedAt: s.now().UTC()}, nil
	})
}

// ListEvents returns mirrored events ordered by date.
func (s *CalendarSyncService) ListEvents(ctx context.Context, limit int64) ([]models.CalendarEvent, error) {
	events, err := s.mirror.ListAll(ctx, limit)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list calendar events")
	}
	return events, nil
}

// ListUnprocessed returns assignment events not yet bridged.
func (s *CalendarSyncService) ListUnprocessed(ctx context.Context) ([]models.CalendarEvent, error) {
	events, err := s.mirror.ListUnprocessed(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list unprocessed assignments")
	}
	return events, nil
}

// ListUpcoming returns unreminded assignment events due within days.
func (s *CalendarSyncService) ListUpcoming(ctx context.Context, days int) ([]models.CalendarEvent, bool, error) {
	if days <= 0 {
		days = 7
	}
	key := cacheKey("calendar", "upcoming", strconv.Itoa(days))
	return readThrough(ctx, s.cache, s.logger, key, func(ctx context.Context) ([]models.CalendarEvent, error) {
		events, err := s.mirror.ListUpcoming(ctx, s.now().UTC(), days)
		if err != nil {
			return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list upcoming assignments")
		}
		return events, nil
	})
}

func (s *CalendarSyncService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, calendarCachePattern); err != nil {
		s.logger.Warn("invalidate calendar cache", zap.Error(err))
	}
}
