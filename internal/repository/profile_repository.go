package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-companion-api/internal/models"
)

// ProfileRepository reads user profiles.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByEmail loads a profile by email, case-insensitively.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	const query = `SELECT id, email, full_name, preferred_study_hour, created_at FROM profiles WHERE LOWER(email) = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindByID loads a profile by id.
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	const query = `SELECT id, email, full_name, preferred_study_hour, created_at FROM profiles WHERE id = $1`
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		return nil, err
	}
	return &profile, nil
}
