package repositories

import (
	"context"
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// InvoiceRepository provides access to invoice data
type InvoiceRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *gorm.DB, readOnlyDB *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create stores an invoice with its lines and installments. Pass a
// transaction to make the insert part of a larger unit of work.
func (r *InvoiceRepository) Create(ctx context.Context, tx *gorm.DB, invoice *models.Invoice) error {
	if tx == nil {
		tx = r.db
	}
	if err := tx.WithContext(ctx).Create(invoice).Error; err != nil {
		return errors.Wrap(translate(err), "failed to create invoice")
	}
	return nil
}

// GetByID loads an invoice with lines and installments
func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.preloaded(ctx).First(&invoice, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "failed to get invoice by ID")
	}
	return &invoice, nil
}

// GetByNumber loads an invoice by its document number
func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.preloaded(ctx).First(&invoice, "number = ?", number).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "failed to get invoice by number")
	}
	return &invoice, nil
}

// ListByCustomer returns a customer's invoices, newest first
func (r *InvoiceRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.preloaded(ctx).
		Where("customer_id = ?", customerID).
		Order("issue_date DESC").
		Order("number DESC").
		Limit(limit).
		Offset(offset).
		Find(&invoices).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list invoices")
	}
	return invoices, nil
}

// ListByTemplate returns the invoices generated from a template in generation order
func (r *InvoiceRepository) ListByTemplate(ctx context.Context, templateID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Lines", orderBy("position")).
		Where("recurrence_template_id = ?", templateID).
		Order("occurrence_at ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list generated invoices")
	}
	return invoices, nil
}

// ExistsForOccurrence reports whether an invoice was already generated for
// the template occurrence
func (r *InvoiceRepository) ExistsForOccurrence(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, occurrenceAt time.Time) (bool, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&models.Invoice{}).
		Unscoped().
		Where("recurrence_template_id = ? AND occurrence_at = ?", templateID, occurrenceAt.UTC()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check generated occurrence")
	}
	return count > 0, nil
}

func (r *InvoiceRepository) preloaded(ctx context.Context) *gorm.DB {
	return r.readOnlyDB.WithContext(ctx).
		Preload("Lines", orderBy("position")).
		Preload("Installments", orderBy("sequence"))
}
