package repositories

import (
	"context"

	"example.com/backstage/invoicing/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuoteRepository provides access to quote data
type QuoteRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewQuoteRepository creates a new quote repository
func NewQuoteRepository(db *gorm.DB, readOnlyDB *gorm.DB) *QuoteRepository {
	return &QuoteRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create stores a quote with its lines
func (r *QuoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	if err := r.db.WithContext(ctx).Create(quote).Error; err != nil {
		return errors.Wrap(translate(err), "failed to create quote")
	}
	return nil
}

// GetByID loads a quote with its lines
func (r *QuoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Lines", orderBy("position")).
		First(&quote, "id = ?", id).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "failed to get quote by ID")
	}
	return &quote, nil
}

// ListByCustomer returns a customer's quotes, newest first
func (r *QuoteRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Quote, error) {
	var quotes []models.Quote
	err := r.readOnlyDB.WithContext(ctx).
		Preload("Lines", orderBy("position")).
		Where("customer_id = ?", customerID).
		Order("issue_date DESC").
		Order("number DESC").
		Limit(limit).
		Offset(offset).
		Find(&quotes).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list quotes")
	}
	return quotes, nil
}

// LockForUpdate re-reads a quote and its lines inside tx holding a row lock
func (r *QuoteRepository) LockForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&quote).Error
	if err != nil {
		return nil, errors.Wrap(translate(err), "failed to lock quote")
	}
	if err := tx.WithContext(ctx).Where("quote_id = ?", id).Order("position ASC").Find(&quote.Lines).Error; err != nil {
		return nil, errors.Wrap(err, "failed to load quote lines")
	}
	return &quote, nil
}

// MarkConverted links a quote to the invoice created from it
func (r *QuoteRepository) MarkConverted(ctx context.Context, tx *gorm.DB, id, invoiceID uuid.UUID) error {
	result := tx.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     models.QuoteStatusConverted,
			"invoice_id": invoiceID,
		})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to mark quote converted")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(ErrNotFound, "failed to mark quote converted")
	}
	return nil
}

// UpdateStatus moves a quote to another status
func (r *QuoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.QuoteStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Quote{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to update quote status")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(ErrNotFound, "failed to update quote status")
	}
	return nil
}
