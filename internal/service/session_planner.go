package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/config"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type slotFinder interface {
	FindBestAvailableTime(ctx context.Context, day time.Time, preferredHour, durationMinutes, minHour, maxHour int) Slot
}

// SessionPlanner decides how many study sessions an assignment gets and on
// which days, delegating placement within a day to the slot finder.
type SessionPlanner struct {
	slots    slotFinder
	defaults config.PlannerConfig
}

// NewSessionPlanner constructs a planner using cfg for unset options.
func NewSessionPlanner(slots slotFinder, cfg config.PlannerConfig) *SessionPlanner {
	if cfg.DurationMinutes <= 0 {
		cfg.DurationMinutes = 60
	}
	if cfg.MaxHour <= cfg.MinHour {
		cfg.MinHour, cfg.MaxHour = 7, 23
	}
	return &SessionPlanner{slots: slots, defaults: cfg}
}

// PlanSessions plans sessions for assignment starting today at preferredHour
// using the configured duration and window.
func (p *SessionPlanner) PlanSessions(ctx context.Context, assignment *models.Assignment, today time.Time, preferredHour int) ([]models.StudySession, error) {
	return p.Plan(ctx, assignment, today, models.SessionPlanOptions{PreferredHour: &preferredHour})
}

// Plan returns unsaved session drafts in day order. Sessions are spread over
// the days before the due date, ramping from concept review to practice.
func (p *SessionPlanner) Plan(ctx context.Context, assignment *models.Assignment, today time.Time, opts models.SessionPlanOptions) ([]models.StudySession, error) {
	if assignment == nil || assignment.DueAt.IsZero() {
		return nil, appErrors.ErrInvalidAssignment
	}
	resolved, err := p.resolve(opts)
	if err != nil {
		return nil, err
	}

	daysUntil := DaysUntil(today, assignment.DueAt)
	if daysUntil < 1 {
		daysUntil = 1
	}
	available := daysUntil - 1
	count := SessionCount(assignment.Type, daysUntil)

	y, m, d := today.Date()
	loc := today.Location()

	sessions := make([]models.StudySession, 0, count)
	for i := 0; i < count; i++ {
		day := time.Date(y, m, d+dayOffset(i, count, available), 0, 0, 0, 0, loc)
		slot := p.slots.FindBestAvailableTime(ctx, day, *resolved.PreferredHour, resolved.DurationMinutes, resolved.MinHour, resolved.MaxHour)

		topics := make([]string, len(assignment.Topics))
		copy(topics, assignment.Topics)

		sessions = append(sessions, models.StudySession{
			AssignmentID:    assignment.ID,
			ScheduledAt:     slot.Start,
			DurationMinutes: resolved.DurationMinutes,
			Topics:          topics,
			Focus:           sessionFocus(i, count),
			Status:          models.SessionStatusScheduled,
			Degraded:        slot.Degraded,
		})
	}
	return sessions, nil
}

func (p *SessionPlanner) resolve(opts models.SessionPlanOptions) (models.SessionPlanOptions, error) {
	if opts.PreferredHour == nil {
		h := p.defaults.PreferredHour
		opts.PreferredHour = &h
	}
	if opts.DurationMinutes == 0 {
		opts.DurationMinutes = p.defaults.DurationMinutes
	}
	if opts.MinHour == 0 && opts.MaxHour == 0 {
		opts.MinHour, opts.MaxHour = p.defaults.MinHour, p.defaults.MaxHour
	}

	switch {
	case *opts.PreferredHour < 0 || *opts.PreferredHour > 23:
		return opts, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("preferred hour %d outside 0-23", *opts.PreferredHour))
	case opts.DurationMinutes <= 0:
		return opts, appErrors.Clone(appErrors.ErrValidation, "duration must be positive")
	case opts.MinHour < 0 || opts.MaxHour > 24 || opts.MinHour >= opts.MaxHour:
		return opts, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid study window %d-%d", opts.MinHour, opts.MaxHour))
	}
	return opts, nil
}

// SessionCount is the number of sessions planned for an assignment of type t
// due in daysUntil calendar days.
func SessionCount(t models.AssignmentType, daysUntil int) int {
	n := daysUntil - 1
	if limit := t.SessionCap(); n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

// DaysUntil counts calendar days from today to due, evaluated in today's
// location.
func DaysUntil(today, due time.Time) int {
	ty, tm, td := today.Date()
	dy, dm, dd := due.In(today.Location()).Date()
	from := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	to := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours() / 24)
}

// dayOffset spreads count sessions from today up to the day before the due
// date, which is available days away.
func dayOffset(i, count, available int) int {
	if count <= 1 {
		return 0
	}
	return available * i / (count - 1)
}

func sessionFocus(i, count int) models.SessionFocus {
	if float64(i)/float64(count) < 0.5 {
		return models.SessionFocusConcepts
	}
	return models.SessionFocusPractice
}
