package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-companion-api/internal/dto"
	"github.com/noah-isme/study-companion-api/internal/middleware"
	"github.com/noah-isme/study-companion-api/internal/models"
	appErrors "github.com/noah-isme/study-companion-api/pkg/errors"
	"github.com/noah-isme/study-companion-api/pkg/response"
)

type calendarService interface {
	Sync(ctx context.Context, daysAhead int) (*models.SyncStats, error)
	Stats(ctx context.Context) (*models.CalendarStats, bool, error)
	ListEvents(ctx context.Context, limit int64) ([]models.CalendarEvent, error)
	ListUnprocessed(ctx context.Context) ([]models.CalendarEvent, error)
	ListUpcoming(ctx context.Context, days int) ([]models.CalendarEvent, bool, error)
}

// CalendarHandler exposes the mirrored calendar.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// Stats godoc
// @Summary Mirrored calendar statistics
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/stats [get]
func (h *CalendarHandler) Stats(c *gin.Context) {
	start := time.Now()
	stats, cacheHit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, stats, cacheHit, start)
}

// Sync godoc
// @Summary Mirror upcoming calendar events
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body dto.CalendarSyncRequest false "Sync window"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/sync [post]
func (h *CalendarHandler) Sync(c *gin.Context) {
	var req dto.CalendarSyncRequest
	if err := bindJSON(c, &req, true, "calendar sync"); err != nil {
		response.Error(c, err)
		return
	}
	stats, err := h.service.Sync(c.Request.Context(), req.DaysAhead)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Events godoc
// @Summary List mirrored calendar events
// @Tags Calendar
// @Produce json
// @Param limit query int false "Maximum events" default(50)
// @Success 200 {object} response.Envelope
// @Router /calendar/events [get]
func (h *CalendarHandler) Events(c *gin.Context) {
	limit, err := queryInt(c, "limit", 50)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.service.ListEvents(c.Request.Context(), int64(limit))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil, map[string]interface{}{"count": len(events)})
}

// Unprocessed godoc
// @Summary Assignment events not yet bridged
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments/unprocessed [get]
func (h *CalendarHandler) Unprocessed(c *gin.Context) {
	events, err := h.service.ListUnprocessed(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil, map[string]interface{}{"count": len(events)})
}

// Upcoming godoc
// @Summary Assignment events due soon
// @Tags Assignments
// @Produce json
// @Param days query int false "Look-ahead window in days" default(7)
// @Success 200 {object} response.Envelope
// @Router /assignments/upcoming [get]
func (h *CalendarHandler) Upcoming(c *gin.Context) {
	days, err := queryInt(c, "days", 7)
	if err != nil {
		response.Error(c, err)
		return
	}
	if days > 365 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "days must not exceed 365"))
		return
	}
	start := time.Now()
	events, cacheHit, err := h.service.ListUpcoming(c.Request.Context(), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondCached(c, events, cacheHit, start)
}

func respondCached(c *gin.Context, data interface{}, cacheHit bool, start time.Time) {
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, data, nil, meta)
}
