package handlers

import (
	"net/http"
	"strconv"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/search"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// InvoiceHandler handles invoice requests
type InvoiceHandler struct {
	invoices *services.InvoiceService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

func (h *InvoiceHandler) HandleCreateInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	params, err := req.ToInvoiceParams()
	if err != nil {
		writeError(c, err)
		return
	}

	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

// HandleGetInvoice looks an invoice up by id, or by number when the path
// segment is not a UUID
func (h *InvoiceHandler) HandleGetInvoice(c *gin.Context) {
	ref := c.Param("id")

	if id, err := uuid.Parse(ref); err == nil {
		invoice, err := h.invoices.GetInvoice(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, invoice)
		return
	}

	invoice, err := h.invoices.GetInvoiceByNumber(c.Request.Context(), ref)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) HandleSearchInvoices(c *gin.Context) {
	q := search.InvoiceQuery{
		Text:   c.Query("q"),
		Status: c.Query("status"),
	}
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(c, newError(ErrInvalidRequest, "invalid customer_id"))
			return
		}
		q.CustomerID = &id
	}
	if raw := c.Query("limit"); raw != "" {
		q.Limit, _ = strconv.Atoi(raw)
	}

	docs, err := h.invoices.SearchInvoices(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": docs})
}

// RegisterRoutes registers the handler's routes
func (h *InvoiceHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/invoices", h.HandleCreateInvoice)
	group.GET("/invoices/:id", h.HandleGetInvoice)
	group.GET("/search/invoices", h.HandleSearchInvoices)
}
