package handlers

import (
	"net/http"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
)

// NumberHandler exposes document number allocation
type NumberHandler struct {
	numbers *services.NumberingService
}

// NewNumberHandler creates a new number handler
func NewNumberHandler(numbers *services.NumberingService) *NumberHandler {
	return &NumberHandler{numbers: numbers}
}

// HandleAllocateNumber reserves the next number for a document type
func (h *NumberHandler) HandleAllocateNumber(c *gin.Context) {
	var req dto.AllocateNumberRequest
	if !bindJSON(c, &req) {
		return
	}

	docType, date, err := req.ToAllocation()
	if err != nil {
		writeError(c, err)
		return
	}

	number, err := h.numbers.AllocateNumber(c.Request.Context(), docType, date)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.AllocateNumberResponse{DocumentType: string(docType), Number: number})
}

// RegisterRoutes registers the handler's routes
func (h *NumberHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/numbers", h.HandleAllocateNumber)
}
