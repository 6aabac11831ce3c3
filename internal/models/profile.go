package models

import "time"

// Profile is a user record in the table store.
type Profile struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	FullName           string    `db:"full_name" json:"full_name"`
	PreferredStudyHour *int      `db:"preferred_study_hour" json:"preferred_study_hour,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
