package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
	mailer "github.com/noah-isme/study-companion-api/pkg/mail"
)

type senderStub struct {
	sent []mailer.Message
	err  error
}

func (s *senderStub) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestSendExamReminder(t *testing.T) {
	sender := &senderStub{}
	metrics := NewMetricsService()
	svc := NewNotificationService(sender, metrics, "http://localhost:3000", time.UTC, nil)

	details := models.AssignmentInfo{
		Title:  "Machine Learning Exam",
		Course: "Machine Learning",
		Type:   models.AssignmentTypeExam,
		DueAt:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, svc.SendExamReminder(context.Background(), studentEmail, details, 3))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Exam Alert: Machine Learning Exam in 3 days!", msg.Subject)
	assert.Equal(t, studentEmail, msg.To[0].Address)
	assert.Contains(t, msg.Text, "Monday, 10 March 2025 at 09:00")
	assert.Contains(t, msg.Text, "3 days")
	assert.Contains(t, msg.HTML, "http://localhost:3000")
	assert.Equal(t, uint64(1), metrics.Snapshot().EmailsSent)
}

func TestSendNewAssignment(t *testing.T) {
	sender := &senderStub{}
	svc := NewNotificationService(sender, nil, "http://localhost:3000", time.UTC, nil)

	err := svc.SendNewAssignment(context.Background(), studentEmail, &models.Assignment{
		Title:  "History essay due",
		Course: "History",
		Type:   models.AssignmentTypeEssay,
		DueAt:  time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "New essay: History essay due", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Text, "Course: History")

	assert.True(t, errors.Is(svc.SendNewAssignment(context.Background(), studentEmail, nil), appErrors.ErrValidation))
}

func TestSendTestEmailAndFailures(t *testing.T) {
	sender := &senderStub{}
	svc := NewNotificationService(sender, nil, "", nil, nil)
	require.NoError(t, svc.SendTest(context.Background(), studentEmail))
	assert.Equal(t, "Study Companion Test", sender.sent[0].Subject)

	err := svc.SendTest(context.Background(), "not an address")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	sender.err = errors.New("connection refused")
	metrics := NewMetricsService()
	failing := NewNotificationService(sender, metrics, "", nil, nil)
	err = failing.SendTest(context.Background(), studentEmail)
	assert.True(t, errors.Is(err, appErrors.ErrMailDelivery))
	assert.Zero(t, metrics.Snapshot().EmailsSent)
}
