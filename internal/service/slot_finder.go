package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
)

const defaultSlotStep = 30 * time.Minute

// BusySource returns the occupied intervals intersecting [timeMin, timeMax).
type BusySource interface {
	QueryBusy(ctx context.Context, timeMin, timeMax time.Time) ([]models.BusyInterval, error)
}

// Slot is a chosen session start. Degraded marks a start that was returned
// without a conflict check succeeding.
type Slot struct {
	Start    time.Time
	Degraded bool
}

// SlotFinder places a single study session on a day while avoiding busy
// intervals.
type SlotFinder struct {
	busy   BusySource
	step   time.Duration
	logger *zap.Logger
}

// NewSlotFinder constructs a slot finder scanning in step increments.
func NewSlotFinder(busy BusySource, step time.Duration, logger *zap.Logger) *SlotFinder {
	if step <= 0 {
		step = defaultSlotStep
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotFinder{busy: busy, step: step, logger: logger}
}

// FindBestAvailableTime returns the earliest free start at or after the
// preferred hour on day, keeping the session inside [minHour, maxHour). It
// never fails: when the busy source is unavailable or the window is full the
// clamped preferred start is returned with Degraded set.
func (f *SlotFinder) FindBestAvailableTime(ctx context.Context, day time.Time, preferredHour, durationMinutes, minHour, maxHour int) Slot {
	y, m, d := day.Date()
	loc := day.Location()
	duration := time.Duration(durationMinutes) * time.Minute

	hour := ClampHour(preferredHour, durationMinutes, minHour, maxHour)
	candidate := time.Date(y, m, d, hour, 0, 0, 0, loc)

	if f.busy == nil {
		return Slot{Start: candidate, Degraded: true}
	}

	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	busy, err := f.busy.QueryBusy(ctx, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		f.logger.Warn("busy intervals unavailable, using preferred slot",
			zap.Time("day", dayStart),
			zap.Time("slot", candidate),
			zap.Error(err),
		)
		return Slot{Start: candidate, Degraded: true}
	}

	windowEnd := time.Date(y, m, d, maxHour, 0, 0, 0, loc)
	for start := candidate; !start.Add(duration).After(windowEnd); start = start.Add(f.step) {
		if isFree(busy, start, start.Add(duration)) {
			return Slot{Start: start}
		}
	}

	f.logger.Warn("no free slot in window, using preferred slot",
		zap.Time("day", dayStart),
		zap.Time("slot", candidate),
		zap.Int("busy_intervals", len(busy)),
	)
	return Slot{Start: candidate, Degraded: true}
}

// ClampHour bounds hour so a session of durationMinutes ends by maxHour.
// When the window cannot hold the session minHour is used.
func ClampHour(hour, durationMinutes, minHour, maxHour int) int {
	hoursNeeded := (durationMinutes + 59) / 60
	latest := maxHour - hoursNeeded
	if hour > latest {
		hour = latest
	}
	if hour < minHour {
		hour = minHour
	}
	return hour
}

func isFree(busy []models.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}
