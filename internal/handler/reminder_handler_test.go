package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/study-companion-api/internal/dto"
	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
)

type fakeReminderSrv struct {
	email string
	days  int
	sent  int
}

func (f *fakeReminderSrv) Preview(_ context.Context, email string, daysAhead int) ([]models.ReminderPreview, error) {
	f.email, f.days = email, daysAhead
	return []models.ReminderPreview{{Title: "ML Exam", DaysUntil: 1, Message: "Exam tomorrow on ML"}}, nil
}

func (f *fakeReminderSrv) CheckAndNotify(_ context.Context, email string, daysAhead int) (*models.ReminderReport, error) {
	f.email, f.days = email, daysAhead
	f.sent++
	return &models.ReminderReport{UserEmail: email, RemindersSent: 1}, nil
}

type fakeTestMailer struct {
	to  string
	err error
}

func (f *fakeTestMailer) SendTest(_ context.Context, to string) error {
	f.to = to
	return f.err
}

func TestReminderHandlerCheckDefaultsWindow(t *testing.T) {
	srv := &fakeReminderSrv{}
	handler := NewReminderHandler(srv, &fakeTestMailer{})

	c, rec := newTestContext(http.MethodPost, "/api/reminders/check", `{"user_email":"student@example.com"}`)
	handler.Check(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, srv.days)
	assert.Zero(t, srv.sent)
	var body dto.ReminderCheckResponse
	decodeEnvelope(t, rec, &body)
	assert.Len(t, body.Reminders, 1)
	assert.Equal(t, 7, body.DaysAhead)

	c, rec = newTestContext(http.MethodPost, "/api/reminders/check", `{"user_email":"student@example.com","days_ahead":90}`)
	handler.Check(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReminderHandlerSend(t *testing.T) {
	srv := &fakeReminderSrv{}
	handler := NewReminderHandler(srv, &fakeTestMailer{})

	c, rec := newTestContext(http.MethodPost, "/api/reminders/send", `{"user_email":"student@example.com","days_ahead":3}`)
	handler.Send(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, srv.sent)
	assert.Equal(t, 3, srv.days)
}

func TestReminderHandlerTestEmail(t *testing.T) {
	mailer := &fakeTestMailer{}
	handler := NewReminderHandler(&fakeReminderSrv{}, mailer)

	c, rec := newTestContext(http.MethodPost, "/api/notifications/test", `{"user_email":"student@example.com"}`)
	handler.TestEmail(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "student@example.com", mailer.to)

	mailer.err = appErrors.WrapAs(errors.New("connection refused"), appErrors.ErrMailDelivery, "")
	c, rec = newTestContext(http.MethodPost, "/api/notifications/test", `{"user_email":"student@example.com"}`)
	handler.TestEmail(c)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
