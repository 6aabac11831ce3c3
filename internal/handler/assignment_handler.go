package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-companion-api/internal/dto"
	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/response"
)

type assignmentService interface {
	SyncForUser(ctx context.Context, email string) ([]models.Assignment, error)
	Detect(title, rawDue string) (*models.AssignmentInfo, bool, error)
	Get(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error)
}

// AssignmentHandler bridges mirrored events into assignments.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// Sync godoc
// @Summary Create assignments from unprocessed calendar events
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.UserEmailRequest true "Student"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/sync [post]
func (h *AssignmentHandler) Sync(c *gin.Context) {
	var req dto.UserEmailRequest
	if err := bindJSON(c, &req, false, "assignment sync"); err != nil {
		response.Error(c, err)
		return
	}
	created, err := h.service.SyncForUser(c.Request.Context(), req.UserEmail)
	if err != nil {
		response.Error(c, err)
		return
	}
	if created == nil {
		created = []models.Assignment{}
	}
	response.JSON(c, http.StatusOK, dto.AssignmentSyncResponse{
		UserEmail:   req.UserEmail,
		Created:     len(created),
		Assignments: created,
	}, nil)
}

// Detect godoc
// @Summary Classify an event title
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.DetectAssignmentRequest true "Event"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /assignments/detect [post]
func (h *AssignmentHandler) Detect(c *gin.Context) {
	var req dto.DetectAssignmentRequest
	if err := bindJSON(c, &req, false, "detection"); err != nil {
		response.Error(c, err)
		return
	}
	info, ok, err := h.service.Detect(req.Title, req.Due)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DetectAssignmentResponse{IsAssignment: ok, Info: info}, nil)
}

// List godoc
// @Summary List assignments
// @Tags Assignments
// @Produce json
// @Param user_id query string false "Owner, defaults to the token identity"
// @Param status query string false "upcoming | in_progress | completed"
// @Param page query int false "Page" default(1)
// @Param page_size query int false "Page size" default(20)
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	size, err := queryInt(c, "page_size", 20)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter := models.AssignmentFilter{
		UserID:   requestOwner(c),
		Status:   models.AssignmentStatus(strings.TrimSpace(c.Query("status"))),
		Page:     page,
		PageSize: size,
	}
	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
