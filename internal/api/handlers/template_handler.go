package handlers

import (
	"net/http"

	"example.com/backstage/invoicing/internal/dto"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TemplateHandler handles recurrence template requests
type TemplateHandler struct {
	templates *services.TemplateService
	invoices  *services.InvoiceService
}

// NewTemplateHandler creates a new recurrence template handler
func NewTemplateHandler(templates *services.TemplateService, invoices *services.InvoiceService) *TemplateHandler {
	return &TemplateHandler{
		templates: templates,
		invoices:  invoices,
	}
}

func (h *TemplateHandler) HandleCreateTemplate(c *gin.Context) {
	var req dto.CreateTemplateRequest
	if !bindJSON(c, &req) {
		return
	}

	params, err := req.ToTemplateParams()
	if err != nil {
		writeError(c, err)
		return
	}

	template, err := h.templates.CreateTemplate(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, template)
}

func (h *TemplateHandler) HandleListTemplates(c *gin.Context) {
	var customerID *uuid.UUID
	if raw := c.Query("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(c, newError(ErrInvalidRequest, "invalid customer_id"))
			return
		}
		customerID = &id
	}
	limit, offset := pagination(c)

	templates, err := h.templates.ListTemplates(c.Request.Context(), customerID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListResponse[models.RecurrenceTemplate](templates, limit, offset))
}

func (h *TemplateHandler) HandleGetTemplate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	template, err := h.templates.GetTemplate(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, template)
}

func (h *TemplateHandler) HandleListTemplateInvoices(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	invoices, err := h.invoices.ListTemplateInvoices(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": invoices})
}

// RegisterRoutes registers the handler's routes
func (h *TemplateHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/templates", h.HandleCreateTemplate)
	group.GET("/templates", h.HandleListTemplates)
	group.GET("/templates/:id", h.HandleGetTemplate)
	group.GET("/templates/:id/invoices", h.HandleListTemplateInvoices)
}
