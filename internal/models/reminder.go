package models

import "time"

// ReminderReport summarises one check-and-notify pass.
type ReminderReport struct {
	UserEmail          string    `json:"user_email"`
	AssignmentsCreated int       `json:"assignments_created"`
	NewAssignmentSent  int       `json:"new_assignment_notifications"`
	RemindersSent      int       `json:"reminders_sent"`
	SkippedPast        int       `json:"skipped_past"`
	Failures           []string  `json:"failures,omitempty"`
	CheckedAt          time.Time `json:"checked_at"`
}

// NotificationsSent is the number of emails delivered in the pass.
func (r ReminderReport) NotificationsSent() int {
	return r.NewAssignmentSent + r.RemindersSent
}

// ReminderPreview is the reminder text that would be sent for an event.
type ReminderPreview struct {
	EventID   string         `json:"event_id"`
	Title     string         `json:"title"`
	Course    string         `json:"course"`
	Type      AssignmentType `json:"type"`
	DueAt     time.Time      `json:"due_at"`
	DaysUntil int            `json:"days_until"`
	Message   string         `json:"message"`
}

// AgentStatus describes the background agent state.
type AgentStatus struct {
	Running           bool       `json:"running"`
	UserEmail         string     `json:"user_email,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	LastSync          *time.Time `json:"last_sync,omitempty"`
	LastCheck         *time.Time `json:"last_check,omitempty"`
	NextSync          *time.Time `json:"next_sync,omitempty"`
	NextCheck         *time.Time `json:"next_check,omitempty"`
	NotificationsSent int        `json:"notifications_sent"`
	PendingJobs       int        `json:"pending_jobs"`
	LastError         string     `json:"last_error,omitempty"`
}

// SystemMetrics represents process level figures captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	SessionsPlanned          uint64    `json:"sessions_planned"`
	DegradedSlots            uint64    `json:"degraded_slots"`
	EmailsSent               uint64    `json:"emails_sent"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
