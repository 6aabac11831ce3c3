package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-companion-api/internal/dto"
	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
	"github.com/noah-isme/study-companion-api/pkg/response"
)

type studyPlanService interface {
	Preview(ctx context.Context, assignmentID string, opts models.SessionPlanOptions) ([]models.StudySession, error)
	Schedule(ctx context.Context, assignmentID string, opts models.SessionPlanOptions) (*models.ScheduleResult, error)
	UploadMaterials(ctx context.Context, assignmentID string, opts models.SessionPlanOptions) (*models.ScheduleResult, error)
	List(ctx context.Context, assignmentID string) ([]models.StudySession, error)
}

type studyPlanExporter interface {
	StudyPlan(ctx context.Context, assignmentID string, format models.ExportFormat) (*models.ExportFile, error)
}

// StudyPlanHandler plans and exports study sessions.
type StudyPlanHandler struct {
	service  studyPlanService
	exporter studyPlanExporter
}

// NewStudyPlanHandler constructs the handler.
func NewStudyPlanHandler(service studyPlanService, exporter studyPlanExporter) *StudyPlanHandler {
	return &StudyPlanHandler{service: service, exporter: exporter}
}

func (h *StudyPlanHandler) planRequest(c *gin.Context) (string, models.SessionPlanOptions, error) {
	id, err := pathID(c)
	if err != nil {
		return "", models.SessionPlanOptions{}, err
	}
	var req dto.SessionPlanRequest
	if err := bindJSON(c, &req, true, "session plan"); err != nil {
		return "", models.SessionPlanOptions{}, err
	}
	if req.MinHour > 0 && req.MaxHour > 0 && req.MinHour >= req.MaxHour {
		return "", models.SessionPlanOptions{}, appErrors.Clone(appErrors.ErrValidation, "min_hour must be before max_hour")
	}
	return id, req.Options(), nil
}

// UploadMaterials godoc
// @Summary Mark materials uploaded and schedule study sessions
// @Tags Study Plan
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SessionPlanRequest false "Planner options"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/materials [post]
func (h *StudyPlanHandler) UploadMaterials(c *gin.Context) {
	id, opts, err := h.planRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.UploadMaterials(c.Request.Context(), id, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// PreviewSessions godoc
// @Summary Preview study sessions without storing them
// @Tags Study Plan
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SessionPlanRequest false "Planner options"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/sessions/preview [post]
func (h *StudyPlanHandler) PreviewSessions(c *gin.Context) {
	id, opts, err := h.planRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessions, err := h.service.Preview(c.Request.Context(), id, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil, map[string]interface{}{"count": len(sessions)})
}

// CreateSessions godoc
// @Summary Schedule study sessions
// @Tags Study Plan
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.SessionPlanRequest false "Planner options"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /assignments/{id}/sessions [post]
func (h *StudyPlanHandler) CreateSessions(c *gin.Context) {
	id, opts, err := h.planRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Schedule(c.Request.Context(), id, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListSessions godoc
// @Summary List stored study sessions
// @Tags Study Plan
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/sessions [get]
func (h *StudyPlanHandler) ListSessions(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessions, err := h.service.List(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil, map[string]interface{}{"count": len(sessions)})
}

// Export godoc
// @Summary Download the study plan
// @Tags Study Plan
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Assignment ID"
// @Param format query string false "csv | pdf" default(csv)
// @Success 200 {file} file
// @Router /assignments/{id}/plan/export [get]
func (h *StudyPlanHandler) Export(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(models.ExportFormatCSV)))))
	file, err := h.exporter.StudyPlan(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}
