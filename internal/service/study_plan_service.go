package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type planAssignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	MarkMaterialsUploaded(ctx context.Context, id string) error
}

type sessionStore interface {
	CreateBatch(ctx context.Context, sessions []models.StudySession) ([]models.StudySession, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.StudySession, error)
	SetCalendarEventID(ctx context.Context, id, eventID string) error
}

type sessionPlanner interface {
	Plan(ctx context.Context, assignment *models.Assignment, today time.Time, opts models.SessionPlanOptions) ([]models.StudySession, error)
}

type sessionCalendar interface {
	InsertSessionEvent(ctx context.Context, evt models.SessionEvent) (string, error)
}

type profileLookup interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

// StudyPlanService plans, stores and publishes study sessions.
type StudyPlanService struct {
	assignments planAssignmentStore
	sessions    sessionStore
	planner     sessionPlanner
	calendar    sessionCalendar
	profiles    profileLookup
	metrics     *MetricsService
	loc         *time.Location
	frontendURL string
	logger      *zap.Logger
	now         func() time.Time
}

// StudyPlanConfig carries presentation settings for calendar entries.
type StudyPlanConfig struct {
	Location    *time.Location
	FrontendURL string
}

// NewStudyPlanService constructs the service. calendar and profiles may be nil.
func NewStudyPlanService(assignments planAssignmentStore, sessions sessionStore, planner sessionPlanner, calendar sessionCalendar, profiles profileLookup, metrics *MetricsService, cfg StudyPlanConfig, logger *zap.Logger) *StudyPlanService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &StudyPlanService{
		assignments: assignments,
		sessions:    sessions,
		planner:     planner,
		calendar:    calendar,
		profiles:    profiles,
		metrics:     metrics,
		loc:         cfg.Location,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *StudyPlanService) WithClock(now func() time.Time) *StudyPlanService {
	if now != nil {
		s.now = now
	}
	return s
}

// Preview returns the sessions that Schedule would create, without storing them.
func (s *StudyPlanService) Preview(ctx context.Context, assignmentID string, opts models.SessionPlanOptions) ([]models.StudySession, error) {
	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	return s.plan(ctx, assignment, opts)
}

// Schedule plans and stores the study sessions of an assignment in one batch,
// then creates a calendar entry per session. Calendar failures do not undo
// the stored sessions.
func (s *StudyPlanService) Schedule(ctx context.Context, assignmentID string, opts models.SessionPlanOptions) (*models.ScheduleResult, error) {
	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	existing, err := s.sessions.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list study sessions")
	}
	if len(existing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "study sessions already scheduled for assignment")
	}
	return s.schedule(ctx, assignment, opts)
}

// UploadMaterials flags the assignment's materials as provided and schedules
// its study sessions. An assignment that already has sessions keeps them.
func (s *StudyPlanService) UploadMaterials(ctx context.Context, assignmentID string, opts models.SessionPlanOptions) (*models.ScheduleResult, error) {
	if err := s.assignments.MarkMaterialsUploaded(ctx, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to mark materials uploaded")
	}
	assignment, err := s.load(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	existing, err := s.sessions.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list study sessions")
	}
	if len(existing) > 0 {
		return &models.ScheduleResult{Assignment: assignment, Sessions: existing}, nil
	}
	return s.schedule(ctx, assignment, opts)
}

// List returns the stored sessions of an assignment ordered by start.
func (s *StudyPlanService) List(ctx context.Context, assignmentID string) ([]models.StudySession, error) {
	if _, err := s.load(ctx, assignmentID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list study sessions")
	}
	return sessions, nil
}

func (s *StudyPlanService) schedule(ctx context.Context, assignment *models.Assignment, opts models.SessionPlanOptions) (*models.ScheduleResult, error) {
	drafts, err := s.plan(ctx, assignment, opts)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	created, err := s.sessions.CreateBatch(ctx, drafts)
	s.metrics.ObserveDBQuery("study_sessions.create_batch", time.Since(start))
	if err != nil {
		s.logger.Error("persist study sessions",
			zap.String("assignment_id", assignment.ID),
			zap.Int("sessions", len(drafts)),
			zap.Error(err),
		)
		return nil, appErrors.WrapAs(err, appErrors.ErrPersistenceWrite, "")
	}

	degraded := 0
	for _, session := range created {
		if session.Degraded {
			degraded++
		}
	}
	s.metrics.RecordSessionsPlanned(len(created), degraded)

	result := &models.ScheduleResult{
		Assignment:      assignment,
		Sessions:        created,
		SessionsCreated: len(created),
	}
	result.CalendarEventsCreated = s.publish(ctx, assignment, result.Sessions)

	s.logger.Info("study sessions scheduled",
		zap.String("assignment_id", assignment.ID),
		zap.Int("sessions", result.SessionsCreated),
		zap.Int("degraded", degraded),
		zap.Int("calendar_events", result.CalendarEventsCreated),
	)
	return result, nil
}

// publish creates a calendar entry per session and links it. It returns the
// number of entries created.
func (s *StudyPlanService) publish(ctx context.Context, assignment *models.Assignment, sessions []models.StudySession) int {
	if s.calendar == nil {
		return 0
	}
	count := 0
	for i := range sessions {
		session := &sessions[i]
		eventID, err := s.calendar.InsertSessionEvent(ctx, models.SessionEvent{
			Summary:     "Study: " + assignment.Title,
			Description: s.describe(assignment, session),
			Start:       session.ScheduledAt,
			End:         session.EndsAt(),
			TimeZone:    s.loc.String(),
		})
		if err != nil {
			s.logger.Warn("create study session calendar event", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}
		count++
		if err := s.sessions.SetCalendarEventID(ctx, session.ID, eventID); err != nil {
			s.logger.Warn("link study session calendar event", zap.String("session_id", session.ID), zap.Error(err))
			continue
		}
		session.CalendarEventID = &eventID
	}
	return count
}

func (s *StudyPlanService) describe(assignment *models.Assignment, session *models.StudySession) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Study session for %s\n", assignment.Title)
	fmt.Fprintf(&b, "Focus: %s\n", session.Focus)
	if len(session.Topics) > 0 {
		fmt.Fprintf(&b, "Topics: %s\n", strings.Join(session.Topics, ", "))
	}
	fmt.Fprintf(&b, "Due: %s\n", assignment.DueAt.In(s.loc).Format(noticeDateLayout))
	if s.frontendURL != "" {
		fmt.Fprintf(&b, "\n%s/assignments/%s", s.frontendURL, assignment.ID)
	}
	return b.String()
}

func (s *StudyPlanService) plan(ctx context.Context, assignment *models.Assignment, opts models.SessionPlanOptions) ([]models.StudySession, error) {
	if opts.PreferredHour == nil {
		opts.PreferredHour = s.profileHour(ctx, assignment.UserID)
	}
	return s.planner.Plan(ctx, assignment, s.now().In(s.loc), opts)
}

func (s *StudyPlanService) profileHour(ctx context.Context, userID string) *int {
	if s.profiles == nil || userID == "" {
		return nil
	}
	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("load profile study hour", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return profile.PreferredStudyHour
}

func (s *StudyPlanService) load(ctx context.Context, id string) (*models.Assignment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignment id is required")
	}
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load assignment")
	}
	return assignment, nil
}
