package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type assignmentStore interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	FindBySourceEvent(ctx context.Context, userID, sourceEventID string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	MarkNotificationSent(ctx context.Context, id string) error
	ListUnnotified(ctx context.Context, userID string) ([]models.Assignment, error)
	MarkMaterialsUploaded(ctx context.Context, id string) error
}

type profileStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
}

type assignmentEventMirror interface {
	ListUnprocessed(ctx context.Context) ([]models.CalendarEvent, error)
	MarkProcessed(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// AssignmentService bridges detected assignment events into the table store.
type AssignmentService struct {
	assignments assignmentStore
	profiles    profileStore
	mirror      assignmentEventMirror
	detector    *AssignmentDetector
	cache       responseCache
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs the bridge.
func NewAssignmentService(assignments assignmentStore, profiles profileStore, mirror assignmentEventMirror, detector *AssignmentDetector, cache responseCache, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if detector == nil {
		detector = NewAssignmentDetector(time.UTC, nil)
	}
	return &AssignmentService{
		assignments: assignments,
		profiles:    profiles,
		mirror:      mirror,
		detector:    detector,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *AssignmentService) WithClock(now func() time.Time) *AssignmentService {
	if now != nil {
		s.now = now
	}
	return s
}

// ResolveProfile looks a user up by email.
func (s *AssignmentService) ResolveProfile(ctx context.Context, email string) (*models.Profile, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user email is required")
	}
	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "no profile for "+email)
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load profile")
	}
	return profile, nil
}

// ListUnnotified returns the user's assignments still waiting for their
// new-assignment email.
func (s *AssignmentService) ListUnnotified(ctx context.Context, email string) ([]models.Assignment, error) {
	profile, err := s.ResolveProfile(ctx, email)
	if err != nil {
		return nil, err
	}
	assignments, err := s.assignments.ListUnnotified(ctx, profile.ID)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list unannounced assignments")
	}
	return assignments, nil
}

// SyncForUser creates an assignment for every unprocessed assignment event
// and marks the events processed. Events that fail are logged and left for
// the next run.
func (s *AssignmentService) SyncForUser(ctx context.Context, email string) ([]models.Assignment, error) {
	profile, err := s.ResolveProfile(ctx, email)
	if err != nil {
		return nil, err
	}
	events, err := s.mirror.ListUnprocessed(ctx)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list unprocessed assignments")
	}

	created := make([]models.Assignment, 0, len(events))
	for _, evt := range events {
		assignment, err := s.bridge(ctx, profile, evt)
		if err != nil {
			s.logger.Warn("bridge assignment event",
				zap.String("event_id", evt.ID.Hex()),
				zap.String("title", evt.Details),
				zap.Error(err),
			)
			continue
		}
		if assignment != nil {
			created = append(created, *assignment)
		}
	}

	if len(created) > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, calendarCachePattern); err != nil {
			s.logger.Warn("invalidate calendar cache", zap.Error(err))
		}
	}
	s.logger.Info("assignments bridged", zap.String("user_id", profile.ID), zap.Int("events", len(events)), zap.Int("created", len(created)))
	return created, nil
}

// bridge returns nil without error when the event was already bridged.
func (s *AssignmentService) bridge(ctx context.Context, profile *models.Profile, evt models.CalendarEvent) (*models.Assignment, error) {
	sourceID := evt.ID.Hex()
	existing, err := s.assignments.FindBySourceEvent(ctx, profile.ID, sourceID)
	if err == nil && existing != nil {
		return nil, s.mirror.MarkProcessed(ctx, evt.ID, s.now().UTC())
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if evt.Datetime.IsZero() {
		return nil, appErrors.ErrInvalidAssignment
	}

	info := ExtractAssignmentInfo(evt.Details, evt.Datetime)
	assignment := &models.Assignment{
		UserID:        profile.ID,
		Title:         info.Title,
		Course:        info.Course,
		Type:          info.Type,
		Subtype:       info.Subtype,
		DueAt:         info.DueAt,
		Topics:        info.Topics,
		Status:        models.AssignmentStatusUpcoming,
		SourceEventID: &sourceID,
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, err
	}
	if err := s.mirror.MarkProcessed(ctx, evt.ID, s.now().UTC()); err != nil {
		s.logger.Warn("mark event processed", zap.String("event_id", sourceID), zap.Error(err))
	}
	return assignment, nil
}

// Detect classifies a title and parses its due date without storing anything.
func (s *AssignmentService) Detect(title, rawDue string) (*models.AssignmentInfo, bool, error) {
	if strings.TrimSpace(title) == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	info, err := s.detector.Extract(title, rawDue)
	if err != nil {
		return nil, false, err
	}
	return info, DetectAssignment(title), nil
}

// Get returns an assignment by id.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to load assignment")
	}
	return assignment, nil
}

// List returns a user's assignments.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.AssignmentStatusUpcoming, models.AssignmentStatusInProgress, models.AssignmentStatusCompleted:
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown assignment status")
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	items, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list assignments")
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// MarkNotificationSent records that the new-assignment email was delivered.
func (s *AssignmentService) MarkNotificationSent(ctx context.Context, id string) error {
	return s.mapFlagErr(s.assignments.MarkNotificationSent(ctx, id), "failed to mark notification sent")
}

// MarkMaterialsUploaded records that study material was provided.
func (s *AssignmentService) MarkMaterialsUploaded(ctx context.Context, id string) error {
	return s.mapFlagErr(s.assignments.MarkMaterialsUploaded(ctx, id), "failed to mark materials uploaded")
}

func (s *AssignmentService) mapFlagErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return appErrors.WrapAs(err, appErrors.ErrInternal, message)
}
