package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-companion-api/internal/dto"
	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/response"
)

const defaultReminderDays = 7

type reminderService interface {
	Preview(ctx context.Context, email string, daysAhead int) ([]models.ReminderPreview, error)
	CheckAndNotify(ctx context.Context, email string, daysAhead int) (*models.ReminderReport, error)
}

type testMailer interface {
	SendTest(ctx context.Context, to string) error
}

// ReminderHandler previews and sends deadline reminders.
type ReminderHandler struct {
	service reminderService
	mailer  testMailer
}

// NewReminderHandler constructs the handler.
func NewReminderHandler(service reminderService, mailer testMailer) *ReminderHandler {
	return &ReminderHandler{service: service, mailer: mailer}
}

// Check godoc
// @Summary Preview reminders for upcoming assignments
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body dto.ReminderCheckRequest true "Student and window"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reminders/check [post]
func (h *ReminderHandler) Check(c *gin.Context) {
	var req dto.ReminderCheckRequest
	if err := bindJSON(c, &req, false, "reminder check"); err != nil {
		response.Error(c, err)
		return
	}
	if req.DaysAhead == 0 {
		req.DaysAhead = defaultReminderDays
	}
	previews, err := h.service.Preview(c.Request.Context(), req.UserEmail, req.DaysAhead)
	if err != nil {
		response.Error(c, err)
		return
	}
	if previews == nil {
		previews = []models.ReminderPreview{}
	}
	response.JSON(c, http.StatusOK, dto.ReminderCheckResponse{
		UserEmail: req.UserEmail,
		DaysAhead: req.DaysAhead,
		Reminders: previews,
	}, nil)
}

// Send godoc
// @Summary Bridge new assignments and send due reminders now
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body dto.ReminderCheckRequest true "Student and window"
// @Success 200 {object} response.Envelope
// @Router /reminders/send [post]
func (h *ReminderHandler) Send(c *gin.Context) {
	var req dto.ReminderCheckRequest
	if err := bindJSON(c, &req, false, "reminder send"); err != nil {
		response.Error(c, err)
		return
	}
	if req.DaysAhead == 0 {
		req.DaysAhead = defaultReminderDays
	}
	report, err := h.service.CheckAndNotify(c.Request.Context(), req.UserEmail, req.DaysAhead)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// TestEmail godoc
// @Summary Send a test email
// @Tags Reminders
// @Accept json
// @Produce json
// @Param payload body dto.UserEmailRequest true "Recipient"
// @Success 204
// @Failure 502 {object} response.Envelope
// @Router /notifications/test [post]
func (h *ReminderHandler) TestEmail(c *gin.Context) {
	var req dto.UserEmailRequest
	if err := bindJSON(c, &req, false, "test email"); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.mailer.SendTest(c.Request.Context(), req.UserEmail); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
