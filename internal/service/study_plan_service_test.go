package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type sessionStoreStub struct {
	stored    []models.StudySession
	createErr error
	linked    map[string]string
}

func (s *sessionStoreStub) CreateBatch(_ context.Context, sessions []models.StudySession) ([]models.StudySession, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	out := make([]models.StudySession, len(sessions))
	for i, session := range sessions {
		session.ID = fmt.Sprintf("ses-%d", len(s.stored)+1)
		s.stored = append(s.stored, session)
		out[i] = session
	}
	return out, nil
}

func (s *sessionStoreStub) ListByAssignment(_ context.Context, assignmentID string) ([]models.StudySession, error) {
	var out []models.StudySession
	for _, session := range s.stored {
		if session.AssignmentID == assignmentID {
			out = append(out, session)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) SetCalendarEventID(_ context.Context, id, eventID string) error {
	if s.linked == nil {
		s.linked = map[string]string{}
	}
	s.linked[id] = eventID
	return nil
}

type sessionCalendarStub struct {
	events []models.SessionEvent
	failOn map[int]bool
}

func (c *sessionCalendarStub) InsertSessionEvent(_ context.Context, evt models.SessionEvent) (string, error) {
	call := len(c.events)
	c.events = append(c.events, evt)
	if c.failOn[call] {
		return "", errors.New("quota exceeded")
	}
	return fmt.Sprintf("gcal-%d", call), nil
}

var planToday = time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)

type planFixture struct {
	store    *assignmentStoreStub
	sessions *sessionStoreStub
	calendar *sessionCalendarStub
	metrics  *MetricsService
	service  *StudyPlanService
}

func newPlanFixture(src BusySource, profileHour *int) *planFixture {
	exam := &models.Assignment{
		ID:     "asg-1",
		UserID: "user-1",
		Title:  "Machine Learning Exam",
		Type:   models.AssignmentTypeExam,
		DueAt:  time.Date(2025, 3, 9, 9, 0, 0, 0, time.UTC),
		Topics: []string{"Machine", "Learning"},
	}
	profiles := newProfileStub()
	profiles.profiles[studentEmail].PreferredStudyHour = profileHour

	f := &planFixture{
		store:    newAssignmentStoreStub(exam),
		sessions: &sessionStoreStub{},
		calendar: &sessionCalendarStub{},
		metrics:  NewMetricsService(),
	}
	f.service = NewStudyPlanService(f.store, f.sessions, newTestPlanner(src), f.calendar, profiles, f.metrics,
		StudyPlanConfig{Location: time.UTC, FrontendURL: "http://localhost:3000/"}, nil).
		WithClock(func() time.Time { return planToday })
	return f
}

func TestStudyPlanSchedulePersistsAndPublishes(t *testing.T) {
	f := newPlanFixture(&busySourceStub{}, nil)

	result, err := f.service.Schedule(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.NoError(t, err)

	assert.Equal(t, 5, result.SessionsCreated)
	assert.Equal(t, 5, result.CalendarEventsCreated)
	require.Len(t, result.Sessions, 5)
	offsets := []int{0, 1, 2, 3, 5}
	for i, session := range result.Sessions {
		assert.Equal(t, at(planToday.AddDate(0, 0, offsets[i]), 18, 0), session.ScheduledAt)
		require.NotNil(t, session.CalendarEventID)
		assert.Equal(t, fmt.Sprintf("gcal-%d", i), *session.CalendarEventID)
		assert.Equal(t, *session.CalendarEventID, f.sessions.linked[session.ID])
	}

	evt := f.calendar.events[0]
	assert.Equal(t, "Study: Machine Learning Exam", evt.Summary)
	assert.Equal(t, time.Hour, evt.End.Sub(evt.Start))
	assert.Equal(t, "UTC", evt.TimeZone)
	assert.Contains(t, evt.Description, "Focus: concepts")
	assert.Contains(t, evt.Description, "Topics: Machine, Learning")
	assert.Contains(t, evt.Description, "http://localhost:3000/assignments/asg-1")

	assert.Equal(t, uint64(5), f.metrics.Snapshot().SessionsPlanned)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().DBQueryCount)

	_, err = f.service.Schedule(context.Background(), "asg-1", models.SessionPlanOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestStudyPlanPersistenceFailureCreatesNothing(t *testing.T) {
	f := newPlanFixture(&busySourceStub{}, nil)
	f.sessions.createErr = errors.New("deadlock detected")

	result, err := f.service.Schedule(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, appErrors.ErrPersistenceWrite))
	assert.Empty(t, f.sessions.stored)
	assert.Empty(t, f.calendar.events)
	assert.Zero(t, f.metrics.Snapshot().SessionsPlanned)
}

func TestStudyPlanCalendarFailureKeepsSessions(t *testing.T) {
	f := newPlanFixture(&busySourceStub{}, nil)
	f.calendar.failOn = map[int]bool{1: true}

	result, err := f.service.Schedule(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.SessionsCreated)
	assert.Equal(t, 4, result.CalendarEventsCreated)
	assert.Nil(t, result.Sessions[1].CalendarEventID)
	assert.Len(t, f.sessions.stored, 5)
}

func TestStudyPlanDegradedWhenBusySourceFails(t *testing.T) {
	f := newPlanFixture(&busySourceStub{err: appErrors.ErrCalendarUnavailable}, nil)

	result, err := f.service.Schedule(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.SessionsCreated)
	for _, session := range result.Sessions {
		assert.True(t, session.Degraded)
	}
	assert.Equal(t, uint64(5), f.metrics.Snapshot().DegradedSlots)
}

func TestStudyPlanPreferredHourPrecedence(t *testing.T) {
	profileHour := 20
	f := newPlanFixture(&busySourceStub{}, &profileHour)

	drafts, err := f.service.Preview(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 20, drafts[0].ScheduledAt.Hour())
	assert.Empty(t, f.sessions.stored)

	explicit := 9
	drafts, err = f.service.Preview(context.Background(), "asg-1", models.SessionPlanOptions{PreferredHour: &explicit})
	require.NoError(t, err)
	assert.Equal(t, 9, drafts[0].ScheduledAt.Hour())
}

func TestStudyPlanUploadMaterials(t *testing.T) {
	f := newPlanFixture(&busySourceStub{}, nil)

	result, err := f.service.UploadMaterials(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.SessionsCreated)
	assert.True(t, f.store.items["asg-1"].MaterialsUploaded)

	again, err := f.service.UploadMaterials(context.Background(), "asg-1", models.SessionPlanOptions{})
	require.NoError(t, err)
	assert.Zero(t, again.SessionsCreated)
	assert.Len(t, again.Sessions, 5)
	assert.Len(t, f.sessions.stored, 5)

	listed, err := f.service.List(context.Background(), "asg-1")
	require.NoError(t, err)
	assert.Len(t, listed, 5)
}

func TestStudyPlanErrors(t *testing.T) {
	f := newPlanFixture(&busySourceStub{}, nil)

	_, err := f.service.Schedule(context.Background(), "missing", models.SessionPlanOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.service.UploadMaterials(context.Background(), "missing", models.SessionPlanOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = f.service.Preview(context.Background(), "", models.SessionPlanOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	f.store.items["asg-1"].DueAt = time.Time{}
	_, err = f.service.Schedule(context.Background(), "asg-1", models.SessionPlanOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidAssignment))
	assert.Empty(t, f.sessions.stored)
}
