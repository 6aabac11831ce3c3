package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type assignmentBridge interface {
	ResolveProfile(ctx context.Context, email string) (*models.Profile, error)
	SyncForUser(ctx context.Context, email string) ([]models.Assignment, error)
	ListUnnotified(ctx context.Context, email string) ([]models.Assignment, error)
	MarkNotificationSent(ctx context.Context, id string) error
}

type reminderNotifier interface {
	SendExamReminder(ctx context.Context, to string, details models.AssignmentInfo, daysUntil int) error
	SendNewAssignment(ctx context.Context, to string, assignment *models.Assignment) error
}

type reminderMirror interface {
	ListUpcoming(ctx context.Context, now time.Time, days int) ([]models.CalendarEvent, error)
	ListPendingReminders(ctx context.Context, now time.Time, days int) ([]models.CalendarEvent, error)
	MarkReminderSent(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// ReminderService announces new assignments and sends exam reminders.
type ReminderService struct {
	assignments assignmentBridge
	notifier    reminderNotifier
	mirror      reminderMirror
	loc         *time.Location
	logger      *zap.Logger
	now         func() time.Time
}

// NewReminderService constructs the service. Day counts are evaluated in loc.
func NewReminderService(assignments assignmentBridge, notifier reminderNotifier, mirror reminderMirror, loc *time.Location, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderService{
		assignments: assignments,
		notifier:    notifier,
		mirror:      mirror,
		loc:         loc,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the time source.
func (s *ReminderService) WithClock(now func() time.Time) *ReminderService {
	if now != nil {
		s.now = now
	}
	return s
}

// CheckAndNotify bridges pending assignment events, announces every
// assignment not announced yet, then reminds the user of every unreminded
// assignment due within daysAhead. Events already past are marked reminded
// without an email. Delivery failures are collected in the report; the
// assignment or event stays unflagged and is retried on the next pass.
func (s *ReminderService) CheckAndNotify(ctx context.Context, email string, daysAhead int) (*models.ReminderReport, error) {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	now := s.now().In(s.loc)
	report := &models.ReminderReport{UserEmail: email, CheckedAt: now.UTC()}

	created, err := s.assignments.SyncForUser(ctx, email)
	if err != nil {
		return nil, err
	}
	report.AssignmentsCreated = len(created)

	unannounced, err := s.assignments.ListUnnotified(ctx, email)
	if err != nil {
		s.logger.Warn("list unannounced assignments", zap.String("user_email", email), zap.Error(err))
		report.Failures = append(report.Failures, fmt.Sprintf("list unannounced assignments: %v", err))
	}
	for i := range unannounced {
		assignment := &unannounced[i]
		if err := s.notifier.SendNewAssignment(ctx, email, assignment); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("new assignment %s: %v", assignment.ID, err))
			continue
		}
		report.NewAssignmentSent++
		if err := s.assignments.MarkNotificationSent(ctx, assignment.ID); err != nil {
			s.logger.Warn("mark notification sent", zap.String("assignment_id", assignment.ID), zap.Error(err))
		}
	}

	events, err := s.mirror.ListPendingReminders(ctx, now, daysAhead)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list pending reminders")
	}
	for _, evt := range events {
		if evt.Datetime.Before(now) {
			if err := s.mirror.MarkReminderSent(ctx, evt.ID, now.UTC()); err != nil {
				s.logger.Warn("mark past event reminded", zap.String("event_id", evt.ID.Hex()), zap.Error(err))
				continue
			}
			report.SkippedPast++
			continue
		}

		days := DaysUntil(now, evt.Datetime)
		info := ExtractAssignmentInfo(evt.Details, evt.Datetime)
		if err := s.notifier.SendExamReminder(ctx, email, info, days); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("reminder %s: %v", evt.ID.Hex(), err))
			continue
		}
		report.RemindersSent++
		if err := s.mirror.MarkReminderSent(ctx, evt.ID, now.UTC()); err != nil {
			s.logger.Warn("mark event reminded", zap.String("event_id", evt.ID.Hex()), zap.Error(err))
		}
	}

	s.logger.Info("reminder check finished",
		zap.String("user_email", email),
		zap.Int("assignments_created", report.AssignmentsCreated),
		zap.Int("notifications_sent", report.NotificationsSent()),
		zap.Int("skipped_past", report.SkippedPast),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

// Preview returns the reminder messages for assignments due within daysAhead
// without sending anything.
func (s *ReminderService) Preview(ctx context.Context, email string, daysAhead int) ([]models.ReminderPreview, error) {
	if daysAhead <= 0 {
		daysAhead = 7
	}
	if _, err := s.assignments.ResolveProfile(ctx, email); err != nil {
		return nil, err
	}
	now := s.now().In(s.loc)
	events, err := s.mirror.ListUpcoming(ctx, now, daysAhead)
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrInternal, "failed to list upcoming assignments")
	}

	previews := make([]models.ReminderPreview, 0, len(events))
	for _, evt := range events {
		info := ExtractAssignmentInfo(evt.Details, evt.Datetime)
		days := DaysUntil(now, evt.Datetime)
		previews = append(previews, models.ReminderPreview{
			EventID:   evt.ID.Hex(),
			Title:     info.Title,
			Course:    info.Course,
			Type:      info.Type,
			DueAt:     evt.Datetime,
			DaysUntil: days,
			Message:   ReminderMessage(info.Course, days),
		})
	}
	return previews, nil
}
