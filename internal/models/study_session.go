package models

import (
	"time"

	"github.com/lib/pq"
)

// SessionFocus indicates what a study session concentrates on.
type SessionFocus string

const (
	SessionFocusConcepts SessionFocus = "concepts"
	SessionFocusPractice SessionFocus = "practice"
)

// SessionStatus tracks a study session lifecycle.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusSkipped   SessionStatus = "skipped"
)

// StudySession is a recommended block of preparation time for an assignment.
type StudySession struct {
	ID              string         `db:"id" json:"id"`
	AssignmentID    string         `db:"assignment_id" json:"assignment_id"`
	ScheduledAt     time.Time      `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int            `db:"duration_minutes" json:"duration_minutes"`
	Topics          pq.StringArray `db:"topics" json:"topics"`
	Focus           SessionFocus   `db:"focus" json:"focus"`
	Status          SessionStatus  `db:"status" json:"status"`
	CalendarEventID *string        `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	Degraded        bool           `db:"-" json:"degraded,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
}

// EndsAt returns the exclusive end of the session.
func (s StudySession) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// SessionPlanOptions tunes study session placement. Zero values fall back to
// configured defaults.
type SessionPlanOptions struct {
	PreferredHour   *int
	DurationMinutes int
	MinHour         int
	MaxHour         int
}

// ScheduleResult summarises a persisted study plan.
type ScheduleResult struct {
	Assignment            *Assignment    `json:"assignment"`
	Sessions              []StudySession `json:"sessions"`
	SessionsCreated       int            `json:"sessions_created"`
	CalendarEventsCreated int            `json:"calendar_events_created"`
}

// SessionStatusCount aggregates sessions per status.
type SessionStatusCount struct {
	Status SessionStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}
