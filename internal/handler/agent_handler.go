package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-companion-api/internal/models"
	"github.com/noah-isme/study-companion-api/pkg/response"
)

type agentController interface {
	Start() error
	Stop()
	Status() models.AgentStatus
}

// AgentHandler controls the background agent.
type AgentHandler struct {
	agent agentController
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(agent agentController) *AgentHandler {
	return &AgentHandler{agent: agent}
}

// Start godoc
// @Summary Start the background agent
// @Tags Agent
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /agent/start [post]
func (h *AgentHandler) Start(c *gin.Context) {
	if err := h.agent.Start(); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.agent.Status(), nil)
}

// Stop godoc
// @Summary Stop the background agent
// @Tags Agent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /agent/stop [post]
func (h *AgentHandler) Stop(c *gin.Context) {
	h.agent.Stop()
	response.JSON(c, http.StatusOK, h.agent.Status(), nil)
}

// Status godoc
// @Summary Background agent status
// @Tags Agent
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /agent/status [get]
func (h *AgentHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.agent.Status(), nil)
}
