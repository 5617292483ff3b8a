package services

import (
	"context"

	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TemplateService manages recurrence templates
type TemplateService struct {
	templateRepo *repositories.TemplateRepository
	customers    *CustomerService
}

// NewTemplateService creates a new recurrence template service
func NewTemplateService(db *gorm.DB, readOnlyDB *gorm.DB, customers *CustomerService) *TemplateService {
	return &TemplateService{
		templateRepo: repositories.NewTemplateRepository(db, readOnlyDB),
		customers:    customers,
	}
}

// CreateTemplate validates and stores a template. Its first occurrence is the anchor date.
func (s *TemplateService) CreateTemplate(ctx context.Context, params models.TemplateParams) (*models.RecurrenceTemplate, error) {
	if err := s.customers.ensureCustomer(ctx, params.CustomerID); err != nil {
		return nil, err
	}

	template, err := models.NewRecurrenceTemplate(params)
	if err != nil {
		return nil, err
	}
	if err := s.templateRepo.Create(ctx, template); err != nil {
		return nil, err
	}

	log.Info().
		Str("seed_id", template.ID.String()).
		Str("unit", string(template.Unit)).
		Int("interval", template.Interval).
		Time("next_run_at", *template.NextRunAt).
		Msg("Recurrence template created")
	return template, nil
}

// GetTemplate loads a template with its lines and installment plan
func (s *TemplateService) GetTemplate(ctx context.Context, id uuid.UUID) (*models.RecurrenceTemplate, error) {
	return s.templateRepo.GetByID(ctx, id)
}

// ListTemplates returns templates, optionally for one customer
func (s *TemplateService) ListTemplates(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]models.RecurrenceTemplate, error) {
	return s.templateRepo.List(ctx, customerID, limit, offset)
}
