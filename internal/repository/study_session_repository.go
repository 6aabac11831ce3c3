package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-companion-api/internal/models"
)

const studySessionColumns = "id, assignment_id, scheduled_at, duration_minutes, topics, focus, status, calendar_event_id, created_at"

// StudySessionRepository persists planned study sessions.
type StudySessionRepository struct {
	db *sqlx.DB
}

// NewStudySessionRepository constructs the repository.
func NewStudySessionRepository(db *sqlx.DB) *StudySessionRepository {
	return &StudySessionRepository{db: db}
}

// CreateBatch inserts sessions in one transaction. Either every session is
// stored and returned with its id, or none is.
func (r *StudySessionRepository) CreateBatch(ctx context.Context, sessions []models.StudySession) (created []models.StudySession, err error) {
	if len(sessions) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create study sessions: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	created, err = r.insertSessions(ctx, tx, sessions)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create study sessions: %w", err)
	}
	return created, nil
}

func (r *StudySessionRepository) insertSessions(ctx context.Context, exec sqlx.ExtContext, sessions []models.StudySession) ([]models.StudySession, error) {
	const query = `INSERT INTO study_sessions (` + studySessionColumns + `)
		VALUES (:id, :assignment_id, :scheduled_at, :duration_minutes, :topics, :focus, :status, :calendar_event_id, :created_at)`
	now := time.Now().UTC()
	out := make([]models.StudySession, 0, len(sessions))
	for i := range sessions {
		payload := sessions[i]
		if payload.ID == "" {
			payload.ID = uuid.NewString()
		}
		if payload.CreatedAt.IsZero() {
			payload.CreatedAt = now
		}
		if payload.Status == "" {
			payload.Status = models.SessionStatusScheduled
		}
		if payload.Topics == nil {
			payload.Topics = []string{}
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, query, &payload); err != nil {
			return nil, fmt.Errorf("create study session %d: %w", i, err)
		}
		out = append(out, payload)
	}
	return out, nil
}

// ListByAssignment returns an assignment's sessions ordered by start.
func (r *StudySessionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.StudySession, error) {
	query := `SELECT ` + studySessionColumns + ` FROM study_sessions WHERE assignment_id = $1 ORDER BY scheduled_at ASC`
	var sessions []models.StudySession
	if err := r.db.SelectContext(ctx, &sessions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list study sessions: %w", err)
	}
	return sessions, nil
}

// SetCalendarEventID links a session to the calendar entry created for it.
func (r *StudySessionRepository) SetCalendarEventID(ctx context.Context, id, eventID string) error {
	const query = `UPDATE study_sessions SET calendar_event_id = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, eventID); err != nil {
		return fmt.Errorf("set study session calendar event: %w", err)
	}
	return nil
}

// CountByStatus aggregates a user's sessions per status.
func (r *StudySessionRepository) CountByStatus(ctx context.Context, userID string) ([]models.SessionStatusCount, error) {
	const query = `SELECT s.status, COUNT(*) AS count FROM study_sessions s
		JOIN assignments a ON a.id = s.assignment_id
		WHERE a.user_id = $1 GROUP BY s.status ORDER BY s.status`
	var counts []models.SessionStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("count study sessions by status: %w", err)
	}
	return counts, nil
}
