package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
	mailer "github.com/noah-isme/study-companion-api/pkg/mail"
)

const noticeDateLayout = "Monday, 02 January 2006 at 15:04"

// NotificationService renders and sends student emails.
type NotificationService struct {
	sender      mailer.Sender
	metrics     *MetricsService
	frontendURL string
	loc         *time.Location
	logger      *zap.Logger
}

// NewNotificationService constructs the service. Dates in emails are shown in loc.
func NewNotificationService(sender mailer.Sender, metrics *MetricsService, frontendURL string, loc *time.Location, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{sender: sender, metrics: metrics, frontendURL: frontendURL, loc: loc, logger: logger}
}

// SendExamReminder asks the student for study material ahead of an exam.
func (s *NotificationService) SendExamReminder(ctx context.Context, to string, details models.AssignmentInfo, daysUntil int) error {
	subject := fmt.Sprintf("Exam Alert: %s in %d days!", details.Title, daysUntil)
	return s.send(ctx, mailer.TemplateExamReminder, to, subject, s.notice(details, daysUntil))
}

// SendNewAssignment announces an assignment bridged from the calendar.
func (s *NotificationService) SendNewAssignment(ctx context.Context, to string, assignment *models.Assignment) error {
	if assignment == nil {
		return appErrors.Clone(appErrors.ErrValidation, "assignment is required")
	}
	details := models.AssignmentInfo{
		Title:  assignment.Title,
		Course: assignment.Course,
		Type:   assignment.Type,
		DueAt:  assignment.DueAt,
	}
	subject := fmt.Sprintf("New %s: %s", assignment.Type, assignment.Title)
	return s.send(ctx, mailer.TemplateNewAssignment, to, subject, s.notice(details, 0))
}

// SendTest verifies mail delivery.
func (s *NotificationService) SendTest(ctx context.Context, to string) error {
	return s.send(ctx, mailer.TemplateTest, to, "Study Companion Test", nil)
}

func (s *NotificationService) notice(details models.AssignmentInfo, daysUntil int) mailer.NoticeData {
	return mailer.NoticeData{
		Title:       details.Title,
		Course:      details.Course,
		Type:        string(details.Type),
		Date:        details.DueAt.In(s.loc).Format(noticeDateLayout),
		DaysUntil:   daysUntil,
		FrontendURL: s.frontendURL,
	}
}

func (s *NotificationService) send(ctx context.Context, template, to, subject string, data interface{}) error {
	recipient, err := mailer.ParseRecipient(to)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrValidation, "invalid recipient")
	}
	text, html, err := mailer.Render(template, data)
	if err != nil {
		return appErrors.WrapAs(err, appErrors.ErrInternal, "failed to render email")
	}

	err = s.sender.Send(ctx, mailer.Message{
		To:      []mail.Address{recipient},
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
	s.metrics.RecordEmail(template, err)
	if err != nil {
		s.logger.Error("send email", zap.String("template", template), zap.String("to", recipient.Address), zap.Error(err))
		return appErrors.WrapAs(err, appErrors.ErrMailDelivery, "")
	}
	s.logger.Info("email sent", zap.String("template", template), zap.String("to", recipient.Address), zap.String("subject", subject))
	return nil
}
