package dto

import "github.com/noah-isme/study-companion-api/internal/models"

// CalendarSyncRequest triggers a calendar mirror run.
type CalendarSyncRequest struct {
	DaysAhead int `json:"days_ahead" validate:"omitempty,min=1,max=365"`
}

// UserEmailRequest identifies the student a bridge run is for.
type UserEmailRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
}

// ReminderCheckRequest previews reminders for a student.
type ReminderCheckRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
	DaysAhead int    `json:"days_ahead" validate:"omitempty,min=1,max=60"`
}

// DetectAssignmentRequest classifies an event title without storing it.
type DetectAssignmentRequest struct {
	Title string `json:"title" validate:"required,max=500"`
	Due   string `json:"due" validate:"required"`
}

// DetectAssignmentResponse is the classification result.
type DetectAssignmentResponse struct {
	IsAssignment bool                   `json:"is_assignment"`
	Info         *models.AssignmentInfo `json:"info"`
}

// SessionPlanRequest tunes study session placement. Omitted fields use the
// student's preferred hour or the service defaults.
type SessionPlanRequest struct {
	PreferredHour   *int `json:"preferred_hour" validate:"omitempty,min=0,max=23"`
	DurationMinutes int  `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	MinHour         int  `json:"min_hour" validate:"omitempty,min=0,max=23"`
	MaxHour         int  `json:"max_hour" validate:"omitempty,min=1,max=24"`
}

// Options converts the request to planner options.
func (r SessionPlanRequest) Options() models.SessionPlanOptions {
	return models.SessionPlanOptions{
		PreferredHour:   r.PreferredHour,
		DurationMinutes: r.DurationMinutes,
		MinHour:         r.MinHour,
		MaxHour:         r.MaxHour,
	}
}

// AssignmentSyncResponse reports a bridge run.
type AssignmentSyncResponse struct {
	UserEmail   string              `json:"user_email"`
	Created     int                 `json:"created"`
	Assignments []models.Assignment `json:"assignments"`
}

// ReminderCheckResponse lists reminder previews.
type ReminderCheckResponse struct {
	UserEmail string                   `json:"user_email"`
	DaysAhead int                      `json:"days_ahead"`
	Reminders []models.ReminderPreview `json:"reminders"`
}

// HealthResponse is the readiness payload.
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}
