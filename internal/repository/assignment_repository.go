package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-companion-api/internal/models"
)

const assignmentColumns = "id, user_id, title, course, type, exam_subtype, due_at, topics, status, materials_uploaded, notification_sent, source_event_id, created_at, updated_at"

// AssignmentRepository persists bridged assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts a new assignment, assigning id and timestamps when missing.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	now := time.Now().UTC()
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusUpcoming
	}
	if assignment.Topics == nil {
		assignment.Topics = []string{}
	}

	const query = `INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (:id, :user_id, :title, :course, :type, :exam_subtype, :due_at, :topics, :status, :materials_uploaded, :notification_sent, :source_event_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID loads an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindBySourceEvent returns the assignment bridged from a mirrored event.
func (r *AssignmentRepository) FindBySourceEvent(ctx context.Context, userID, sourceEventID string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE user_id = $1 AND source_event_id = $2`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, userID, sourceEventID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListUnnotified returns a user's assignments whose announcement has not
// been sent yet, earliest due first.
func (r *AssignmentRepository) ListUnnotified(ctx context.Context, userID string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE user_id = $1 AND notification_sent = FALSE ORDER BY due_at ASC, created_at ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, userID); err != nil {
		return nil, err
	}
	return assignments, nil
}

// List returns assignments ordered by due date.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	base := "FROM assignments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY due_at ASC LIMIT %d OFFSET %d", assignmentColumns, base, size, offset)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return assignments, total, nil
}

// MarkNotificationSent flags that the new-assignment email went out.
func (r *AssignmentRepository) MarkNotificationSent(ctx context.Context, id string) error {
	return r.setFlag(ctx, id, "notification_sent")
}

// MarkMaterialsUploaded flags that study material was provided.
func (r *AssignmentRepository) MarkMaterialsUploaded(ctx context.Context, id string) error {
	return r.setFlag(ctx, id, "materials_uploaded")
}

func (r *AssignmentRepository) setFlag(ctx context.Context, id, column string) error {
	query := fmt.Sprintf("UPDATE assignments SET %s = TRUE, updated_at = $2 WHERE id = $1", column)
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set assignment %s: %w", column, err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("set assignment %s: %w", column, sql.ErrNoRows)
	}
	return nil
}

// CountByStatus aggregates a user's assignments per status.
func (r *AssignmentRepository) CountByStatus(ctx context.Context, userID string) ([]models.AssignmentStatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM assignments WHERE user_id = $1 GROUP BY status ORDER BY status`
	var counts []models.AssignmentStatusCount
	if err := r.db.SelectContext(ctx, &counts, query, userID); err != nil {
		return nil, fmt.Errorf("count assignments by status: %w", err)
	}
	return counts, nil
}
