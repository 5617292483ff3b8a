package services

import (
	"context"
	stderrors "errors"

	"example.com/backstage/invoicing/internal/cache"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/repositories"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CustomerService handles customer records
type CustomerService struct {
	customerRepo *repositories.CustomerRepository
	cache        *cache.RedisCache
}

// NewCustomerService creates a new customer service
func NewCustomerService(db *gorm.DB, readOnlyDB *gorm.DB, redisCache *cache.RedisCache) *CustomerService {
	return &CustomerService{
		customerRepo: repositories.NewCustomerRepository(db, readOnlyDB),
		cache:        redisCache,
	}
}

// CreateCustomer stores a new customer
func (s *CustomerService) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return err
	}
	log.Info().Str("customer_id", customer.ID.String()).Msg("Customer created")
	return nil
}

// GetCustomer loads a customer, served from cache when possible
func (s *CustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	key := cache.CustomerCacheKey(id)

	var cached models.Customer
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !stderrors.Is(err, cache.ErrCacheMiss) && !stderrors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Str("customer_id", id.String()).Msg("Failed to read customer from cache")
	}

	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, customer, 0); err != nil && !stderrors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Str("customer_id", id.String()).Msg("Failed to cache customer")
	}
	return customer, nil
}

// ListCustomers returns a page of customers ordered by name
func (s *CustomerService) ListCustomers(ctx context.Context, limit, offset int) ([]models.Customer, error) {
	return s.customerRepo.List(ctx, limit, offset)
}

// ArchiveCustomer soft-deletes a customer. Existing documents keep their reference.
func (s *CustomerService) ArchiveCustomer(ctx context.Context, id uuid.UUID) error {
	if err := s.customerRepo.Archive(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cache.CustomerCacheKey(id)); err != nil {
		log.Warn().Err(err).Str("customer_id", id.String()).Msg("Failed to evict customer from cache")
	}
	log.Info().Str("customer_id", id.String()).Msg("Customer archived")
	return nil
}

// ensureCustomer fails with repositories.ErrNotFound for unknown or archived customers
func (s *CustomerService) ensureCustomer(ctx context.Context, id uuid.UUID) error {
	if _, err := s.customerRepo.GetByID(ctx, id); err != nil {
		return errors.Wrapf(err, "customer %s", id)
	}
	return nil
}
