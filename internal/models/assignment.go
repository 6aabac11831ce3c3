package models

import (
	"time"

	"github.com/lib/pq"
)

// AssignmentType enumerates detected academic deadline kinds.
type AssignmentType string

const (
	AssignmentTypeExam         AssignmentType = "exam"
	AssignmentTypeQuiz         AssignmentType = "quiz"
	AssignmentTypeEssay        AssignmentType = "essay"
	AssignmentTypePresentation AssignmentType = "presentation"
	AssignmentTypeOther        AssignmentType = "other"
)

// Valid reports whether t is a known assignment type.
func (t AssignmentType) Valid() bool {
	switch t {
	case AssignmentTypeExam, AssignmentTypeQuiz, AssignmentTypeEssay, AssignmentTypePresentation, AssignmentTypeOther:
		return true
	}
	return false
}

// SessionCap is the maximum number of study sessions planned for the type.
func (t AssignmentType) SessionCap() int {
	switch t {
	case AssignmentTypeExam:
		return 5
	case AssignmentTypeQuiz:
		return 2
	default:
		return 3
	}
}

// ExamSubtype describes the expected style of an exam.
type ExamSubtype string

const (
	ExamSubtypeTheoretical ExamSubtype = "theoretical"
	ExamSubtypePractical   ExamSubtype = "practical"
	ExamSubtypeHybrid      ExamSubtype = "hybrid"
)

// AssignmentStatus tracks the lifecycle of an assignment.
type AssignmentStatus string

const (
	AssignmentStatusUpcoming   AssignmentStatus = "upcoming"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
)

// Assignment is a detected deadline bridged into the table store.
type Assignment struct {
	ID                string           `db:"id" json:"id"`
	UserID            string           `db:"user_id" json:"user_id"`
	Title             string           `db:"title" json:"title"`
	Course            string           `db:"course" json:"course"`
	Type              AssignmentType   `db:"type" json:"type"`
	Subtype           ExamSubtype      `db:"exam_subtype" json:"exam_subtype"`
	DueAt             time.Time        `db:"due_at" json:"due_at"`
	Topics            pq.StringArray   `db:"topics" json:"topics"`
	Status            AssignmentStatus `db:"status" json:"status"`
	MaterialsUploaded bool             `db:"materials_uploaded" json:"materials_uploaded"`
	NotificationSent  bool             `db:"notification_sent" json:"notification_sent"`
	SourceEventID     *string          `db:"source_event_id" json:"source_event_id,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// AssignmentFilter narrows assignment listings.
type AssignmentFilter struct {
	UserID   string
	Status   AssignmentStatus
	Page     int
	PageSize int
}

// AssignmentInfo is the information extracted from a calendar event title.
type AssignmentInfo struct {
	Title   string         `json:"title"`
	Course  string         `json:"course"`
	Type    AssignmentType `json:"type"`
	Subtype ExamSubtype    `json:"exam_subtype"`
	DueAt   time.Time      `json:"due_at"`
	Topics  []string       `json:"topics"`
}

// AssignmentStatusCount aggregates assignments per status.
type AssignmentStatusCount struct {
	Status AssignmentStatus `db:"status" json:"status"`
	Count  int              `db:"count" json:"count"`
}
