package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type reminderFixture struct {
	mirror  *eventMirrorStub
	store   *assignmentStoreStub
	sender  *senderStub
	service *ReminderService
}

func newReminderFixture() *reminderFixture {
	clock := func() time.Time { return syncNow }
	mirror := &eventMirrorStub{}
	store := newAssignmentStoreStub()
	sender := &senderStub{}
	assignments := NewAssignmentService(store, newProfileStub(), mirror, nil, nil, nil).WithClock(clock)
	notifier := NewNotificationService(sender, nil, "http://localhost:3000", time.UTC, nil)
	svc := NewReminderService(assignments, notifier, mirror, time.UTC, nil).WithClock(clock)
	return &reminderFixture{mirror: mirror, store: store, sender: sender, service: svc}
}

func TestCheckAndNotify(t *testing.T) {
	f := newReminderFixture()
	soon := f.mirror.add("Machine Learning Exam", time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC), true)
	past := f.mirror.add("Old quiz", time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), true)
	f.mirror.add("Far exam", time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC), true)

	report, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)

	assert.Equal(t, 3, report.AssignmentsCreated)
	assert.Equal(t, 3, report.NewAssignmentSent)
	assert.Equal(t, 1, report.RemindersSent)
	assert.Equal(t, 1, report.SkippedPast)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 4, report.NotificationsSent())

	assert.ElementsMatch(t, []primitive.ObjectID{soon, past}, f.mirror.reminded)
	assert.Len(t, f.store.notified, 3)

	last := f.sender.sent[len(f.sender.sent)-1]
	assert.Equal(t, "Exam Alert: Machine Learning Exam in 3 days!", last.Subject)

	again, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	assert.Zero(t, again.NotificationsSent())
	assert.Zero(t, again.SkippedPast)
}

func TestCheckAndNotifyKeepsFailedRemindersPending(t *testing.T) {
	f := newReminderFixture()
	f.mirror.add("Physics quiz", time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), true)
	f.sender.err = errors.New("smtp unavailable")

	report, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AssignmentsCreated)
	assert.Zero(t, report.NotificationsSent())
	assert.Len(t, report.Failures, 2)
	assert.Empty(t, f.mirror.reminded)
	assert.Empty(t, f.store.notified)
}

func TestCheckAndNotifyRetriesFailedAnnouncements(t *testing.T) {
	f := newReminderFixture()
	f.mirror.add("Machine Learning Exam", time.Date(2025, 3, 6, 9, 0, 0, 0, time.UTC), true)
	f.sender.err = errors.New("smtp unavailable")

	first, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, first.AssignmentsCreated)
	assert.Zero(t, first.NewAssignmentSent)
	assert.Len(t, first.Failures, 2)

	f.sender.err = nil
	second, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	assert.Zero(t, second.AssignmentsCreated)
	assert.Equal(t, 1, second.NewAssignmentSent)
	assert.Equal(t, 1, second.RemindersSent)
	assert.Empty(t, second.Failures)
	require.Len(t, f.store.notified, 1)
	assert.True(t, f.store.items[f.store.notified[0]].NotificationSent)

	third, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	assert.Zero(t, third.NotificationsSent())
}

func TestCheckAndNotifyContinuesWhenAnnouncementListFails(t *testing.T) {
	f := newReminderFixture()
	f.mirror.add("Physics quiz", time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), true)
	f.store.unnotifiedErr = errors.New("connection refused")

	report, err := f.service.CheckAndNotify(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	assert.Zero(t, report.NewAssignmentSent)
	assert.Equal(t, 1, report.RemindersSent)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0], "list unannounced assignments")
}

func TestCheckAndNotifyUnknownUser(t *testing.T) {
	f := newReminderFixture()
	_, err := f.service.CheckAndNotify(context.Background(), "ghost@example.com", 7)
	assert.True(t, errors.Is(err, appErrors.ErrUserNotFound))
	assert.Zero(t, f.mirror.pendingCalls)
}

func TestReminderPreview(t *testing.T) {
	f := newReminderFixture()
	f.mirror.add("Machine Learning Exam", time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC), true)
	f.mirror.add("Statistics final", time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC), true)

	previews, err := f.service.Preview(context.Background(), studentEmail, 7)
	require.NoError(t, err)
	require.Len(t, previews, 2)

	assert.Equal(t, 1, previews[0].DaysUntil)
	assert.Equal(t, models.AssignmentTypeExam, previews[0].Type)
	assert.Contains(t, previews[0].Message, "tomorrow on Machine Learning")
	assert.Equal(t, 5, previews[1].DaysUntil)
	assert.Contains(t, previews[1].Message, "in 5 days on Statistics")
	assert.Empty(t, f.sender.sent)
}
