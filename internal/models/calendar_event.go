package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CalendarEvent mirrors a Google Calendar event in the document store.
type CalendarEvent struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GoogleEventID  string             `bson:"google_event_id,omitempty" json:"google_event_id,omitempty"`
	Details        string             `bson:"details" json:"details"`
	Description    string             `bson:"description,omitempty" json:"description,omitempty"`
	Datetime       time.Time          `bson:"datetime" json:"datetime"`
	EndsAt         *time.Time         `bson:"ends_at,omitempty" json:"ends_at,omitempty"`
	AllDay         bool               `bson:"all_day" json:"all_day"`
	IsAssignment   bool               `bson:"is_assignment" json:"is_assignment"`
	Processed      bool               `bson:"processed" json:"processed"`
	ProcessedAt    *time.Time         `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	ReminderSent   bool               `bson:"reminder_sent" json:"reminder_sent"`
	ReminderSentAt *time.Time         `bson:"reminder_sent_at,omitempty" json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// CalendarItem is an event as returned by the calendar provider.
type CalendarItem struct {
	ID          string     `json:"id"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Start       time.Time  `json:"start"`
	End         *time.Time `json:"end,omitempty"`
	AllDay      bool       `json:"all_day"`
}

// SessionEvent is a calendar entry created for a study session.
type SessionEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
}

// SyncStats reports the outcome of a calendar sync run.
type SyncStats struct {
	Fetched     int       `json:"fetched"`
	Stored      int       `json:"stored"`
	Duplicates  int       `json:"duplicates"`
	Assignments int       `json:"assignments"`
	Unprocessed int64     `json:"unprocessed"`
	Failed      int       `json:"failed"`
	SyncedAt    time.Time `json:"synced_at"`
}

// CalendarStats summarises the mirrored events.
type CalendarStats struct {
	TotalEvents            int64     `json:"total_events"`
	UnprocessedAssignments int64     `json:"unprocessed_assignments"`
	GeneratedAt            time.Time `json:"generated_at"`
}
