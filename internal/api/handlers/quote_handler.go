package handlers

import (
	"net/http"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
)

// QuoteHandler handles quote requests
type QuoteHandler struct {
	quotes *services.QuoteService
}

// NewQuoteHandler creates a new quote handler
func NewQuoteHandler(quotes *services.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

func (h *QuoteHandler) HandleCreateQuote(c *gin.Context) {
	var req dto.CreateQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	params, err := req.ToQuoteParams()
	if err != nil {
		writeError(c, err)
		return
	}

	quote, err := h.quotes.CreateQuote(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quote)
}

func (h *QuoteHandler) HandleGetQuote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	quote, err := h.quotes.GetQuote(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

func (h *QuoteHandler) HandleUpdateQuoteStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateQuoteStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.quotes.UpdateQuoteStatus(c.Request.Context(), id, models.QuoteStatus(req.Status)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QuoteHandler) HandleConvertQuote(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ConvertQuoteRequest
	if !bindJSON(c, &req) {
		return
	}
	issueDate, err := req.IssueDateOrToday()
	if err != nil {
		writeError(c, err)
		return
	}

	invoice, err := h.quotes.ConvertQuote(c.Request.Context(), id, issueDate, req.PaymentTermDays)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// RegisterRoutes registers the handler's routes
func (h *QuoteHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/quotes", h.HandleCreateQuote)
	group.GET("/quotes/:id", h.HandleGetQuote)
	group.PUT("/quotes/:id/status", h.HandleUpdateQuoteStatus)
	group.POST("/quotes/:id/convert", h.HandleConvertQuote)
}
