package handlers

import (
	"net/http"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/messaging"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
)

// RecurrenceHandler triggers recurrence passes
type RecurrenceHandler struct {
	recurrence *services.RecurrenceService
	dispatcher messaging.Dispatcher
}

// NewRecurrenceHandler creates a new recurrence handler. dispatcher may be nil,
// in which case asynchronous requests are rejected.
func NewRecurrenceHandler(recurrence *services.RecurrenceService, dispatcher messaging.Dispatcher) *RecurrenceHandler {
	return &RecurrenceHandler{
		recurrence: recurrence,
		dispatcher: dispatcher,
	}
}

// HandleRunRecurrence runs a pass and returns its result. With ?async=true the
// pass is queued for a worker instead.
func (h *RecurrenceHandler) HandleRunRecurrence(c *gin.Context) {
	var req dto.RunRecurrenceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, newError(ErrInvalidRequest, err.Error()))
			return
		}
	}

	asOf, err := req.ToAsOf()
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("async") == "true" {
		if h.dispatcher == nil {
			writeError(c, newError(ErrServiceUnavailable, "command queue is not configured"))
			return
		}
		cmd := messaging.NewRunRecurrenceCommand(asOf, "api")
		if err := h.dispatcher.Dispatch(c.Request.Context(), cmd); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"command_id": cmd.ID, "as_of": cmd.AsOf})
		return
	}

	result, err := h.recurrence.RunRecurrencePass(c.Request.Context(), asOf)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewPassResultResponse(result))
}

// RegisterRoutes registers the handler's routes
func (h *RecurrenceHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/recurrence/run", h.HandleRunRecurrence)
}
