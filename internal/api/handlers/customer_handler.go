package handlers

import (
	"net/http"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
)

// CustomerHandler handles customer requests
type CustomerHandler struct {
	customers *services.CustomerService
	invoices  *services.InvoiceService
	quotes    *services.QuoteService
}

// NewCustomerHandler creates a new customer handler
func NewCustomerHandler(customers *services.CustomerService, invoices *services.InvoiceService, quotes *services.QuoteService) *CustomerHandler {
	return &CustomerHandler{
		customers: customers,
		invoices:  invoices,
		quotes:    quotes,
	}
}

func (h *CustomerHandler) HandleCreateCustomer(c *gin.Context) {
	var req dto.CreateCustomerRequest
	if !bindJSON(c, &req) {
		return
	}

	customer := req.ToCustomer()
	if err := h.customers.CreateCustomer(c.Request.Context(), customer); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *CustomerHandler) HandleListCustomers(c *gin.Context) {
	limit, offset := pagination(c)
	customers, err := h.customers.ListCustomers(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse(customers, limit, offset))
}

func (h *CustomerHandler) HandleGetCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	customer, err := h.customers.GetCustomer(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) HandleArchiveCustomer(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.customers.ArchiveCustomer(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CustomerHandler) HandleListCustomerInvoices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	invoices, err := h.invoices.ListCustomerInvoices(c.Request.Context(), id, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse[models.Invoice](invoices, limit, offset))
}

func (h *CustomerHandler) HandleListCustomerQuotes(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)
	quotes, err := h.quotes.ListCustomerQuotes(c.Request.Context(), id, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse[models.Quote](quotes, limit, offset))
}

// RegisterRoutes registers the handler's routes
func (h *CustomerHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/customers", h.HandleCreateCustomer)
	group.GET("/customers", h.HandleListCustomers)
	group.GET("/customers/:id", h.HandleGetCustomer)
	group.DELETE("/customers/:id", h.HandleArchiveCustomer)
	group.GET("/customers/:id/invoices", h.HandleListCustomerInvoices)
	group.GET("/customers/:id/quotes", h.HandleListCustomerQuotes)
}
