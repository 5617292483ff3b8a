package repositories

import (
	"context"

	"example.com/backstage/invoicing/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CustomerRepository provides access to customer data
type CustomerRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB, readOnlyDB *gorm.DB) *CustomerRepository {
	return &CustomerRepository{
		db:         db,
		readOnlyDB: readOnlyDB,
	}
}

// Create stores a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return errors.Wrap(translate(err), "failed to create customer")
	}
	return nil
}

// GetByID retrieves a customer by ID
func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.readOnlyDB.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, errors.Wrap(translate(err), "failed to get customer by ID")
	}
	return &customer, nil
}

// List returns active customers ordered by name
func (r *CustomerRepository) List(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.readOnlyDB.WithContext(ctx).
		Order("name ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&customers).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list customers")
	}
	return customers, nil
}

// Archive soft-deletes a customer. Documents that reference it are kept.
func (r *CustomerRepository) Archive(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.Customer{}, "id = ?", id)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to archive customer")
	}
	if result.RowsAffected == 0 {
		return errors.Wrap(ErrNotFound, "failed to archive customer")
	}
	return nil
}
