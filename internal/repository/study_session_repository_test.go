package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-companion-api/internal/models"
)

func draftSessions() []models.StudySession {
	start := time.Date(2025, 3, 3, 18, 0, 0, 0, time.UTC)
	return []models.StudySession{
		{AssignmentID: "a-1", ScheduledAt: start, DurationMinutes: 60, Topics: []string{"Physics"}, Focus: models.SessionFocusConcepts},
		{AssignmentID: "a-1", ScheduledAt: start.AddDate(0, 0, 1), DurationMinutes: 60, Topics: []string{"Physics"}, Focus: models.SessionFocusPractice},
	}
}

func TestStudySessionRepositoryCreateBatchCommits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudySessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO study_sessions").
		WithArgs(sqlmock.AnyArg(), "a-1", sqlmock.AnyArg(), 60, sqlmock.AnyArg(), "concepts", "scheduled", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO study_sessions").
		WithArgs(sqlmock.AnyArg(), "a-1", sqlmock.AnyArg(), 60, sqlmock.AnyArg(), "practice", "scheduled", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	created, err := repo.CreateBatch(context.Background(), draftSessions())
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.NotEmpty(t, created[0].ID)
	assert.NotEqual(t, created[0].ID, created[1].ID)
	assert.Equal(t, models.SessionStatusScheduled, created[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudySessionRepositoryCreateBatchRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudySessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO study_sessions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO study_sessions").WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	created, err := repo.CreateBatch(context.Background(), draftSessions())
	require.Error(t, err)
	assert.Nil(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudySessionRepositoryCreateBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudySessionRepository(db)

	created, err := repo.CreateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudySessionRepositoryListAndLink(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudySessionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM study_sessions WHERE assignment_id = $1 ORDER BY scheduled_at ASC")).
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "assignment_id", "scheduled_at", "duration_minutes", "topics", "focus", "status", "calendar_event_id", "created_at"}).
			AddRow("s-1", "a-1", now, 60, "{Physics,Optics}", "concepts", "scheduled", "gcal-1", now))

	sessions, err := repo.ListByAssignment(context.Background(), "a-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, []string{"Physics", "Optics"}, []string(sessions[0].Topics))
	require.NotNil(t, sessions[0].CalendarEventID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE study_sessions SET calendar_event_id = $2 WHERE id = $1")).
		WithArgs("s-1", "gcal-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SetCalendarEventID(context.Background(), "s-1", "gcal-2"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT s.status, COUNT(*) AS count FROM study_sessions s")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).AddRow("scheduled", 4))
	counts, err := repo.CountByStatus(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewProfileRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE LOWER(email) = $1")).
		WithArgs("student@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "preferred_study_hour", "created_at"}).
			AddRow("user-1", "Student@example.com", "Student", 19, now))

	profile, err := repo.FindByEmail(context.Background(), " Student@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.ID)
	require.NotNil(t, profile.PreferredStudyHour)
	assert.Equal(t, 19, *profile.PreferredStudyHour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles WHERE id = $1")).
		WithArgs("user-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "full_name", "preferred_study_hour", "created_at"}).
			AddRow("user-2", "b@example.com", "B", nil, now))
	profile, err = repo.FindByID(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Nil(t, profile.PreferredStudyHour)
	assert.NoError(t, mock.ExpectationsWereMet())
}
