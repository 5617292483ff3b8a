package services

import (
	"context"
	stderrors "errors"

	"example.com/backstage/invoicing/internal/cache"
	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/repositories"
	"example.com/backstage/invoicing/internal/search"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// InvoiceService handles one-off invoices and invoice lookups
type InvoiceService struct {
	invoiceRepo   *repositories.InvoiceRepository
	customers     *CustomerService
	numbers       *NumberingService
	cache         *cache.RedisCache
	elasticClient *search.ElasticClient
	tracer        tracing.Tracer
}

// NewInvoiceService creates a new invoice service
func NewInvoiceService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	customers *CustomerService,
	numbers *NumberingService,
	redisCache *cache.RedisCache,
	elasticClient *search.ElasticClient,
	tracer tracing.Tracer,
) *InvoiceService {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	return &InvoiceService{
		invoiceRepo:   repositories.NewInvoiceRepository(db, readOnlyDB),
		customers:     customers,
		numbers:       numbers,
		cache:         redisCache,
		elasticClient: elasticClient,
		tracer:        tracer,
	}
}

// CreateInvoice numbers, prices and stores a one-off invoice. The number is
// committed first and stays unused if the invoice cannot be stored.
func (s *InvoiceService) CreateInvoice(ctx context.Context, params models.InvoiceParams) (*models.Invoice, error) {
	ctx, txn, end := tracing.JoinOrStart(ctx, s.tracer, "create-invoice")
	defer end()

	if err := s.customers.ensureCustomer(ctx, params.CustomerID); err != nil {
		return nil, err
	}

	// Validate before burning a number.
	if _, err := models.NewInvoice("draft", params); err != nil {
		return nil, err
	}

	number, err := s.numbers.AllocateNumber(ctx, models.DocumentTypeInvoice, params.IssueDate)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	invoice, err := models.NewInvoice(number, params)
	if err != nil {
		return nil, err
	}

	span := s.tracer.StartSpan("persist-invoice", txn)
	err = s.invoiceRepo.Create(ctx, nil, invoice)
	span.End()
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Str("invoice_id", invoice.ID.String()).
		Str("number", invoice.Number).
		Str("customer_id", invoice.CustomerID.String()).
		Str("gross_total", invoice.GrossTotal.String()).
		Msg("Invoice created")

	s.index(ctx, invoice)
	return invoice, nil
}

// GetInvoice loads an invoice, served from cache when possible
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	key := cache.InvoiceCacheKey(id)

	var cached models.Invoice
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !stderrors.Is(err, cache.ErrCacheMiss) && !stderrors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Str("invoice_id", id.String()).Msg("Failed to read invoice from cache")
	}

	invoice, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Invoices never change once issued, so the cached copy cannot go stale.
	if err := s.cache.Set(ctx, key, invoice, 0); err != nil && !stderrors.Is(err, cache.ErrCacheDisabled) {
		log.Warn().Err(err).Str("invoice_id", id.String()).Msg("Failed to cache invoice")
	}
	return invoice, nil
}

// GetInvoiceByNumber loads an invoice by its document number
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	return s.invoiceRepo.GetByNumber(ctx, number)
}

// ListCustomerInvoices returns a page of a customer's invoices, newest first
func (s *InvoiceService) ListCustomerInvoices(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Invoice, error) {
	return s.invoiceRepo.ListByCustomer(ctx, customerID, limit, offset)
}

// ListTemplateInvoices returns the invoices generated from a recurrence template
func (s *InvoiceService) ListTemplateInvoices(ctx context.Context, templateID uuid.UUID) ([]models.Invoice, error) {
	return s.invoiceRepo.ListByTemplate(ctx, templateID)
}

// SearchInvoices runs a full text search over indexed invoices
func (s *InvoiceService) SearchInvoices(ctx context.Context, q search.InvoiceQuery) ([]map[string]interface{}, error) {
	if s.elasticClient == nil {
		return nil, search.ErrSearchDisabled
	}
	return s.elasticClient.SearchInvoices(ctx, q)
}

func (s *InvoiceService) index(ctx context.Context, invoice *models.Invoice) {
	if s.elasticClient == nil {
		return
	}
	if err := s.elasticClient.IndexInvoice(ctx, invoice); err != nil {
		log.Warn().Err(err).Str("invoice_id", invoice.ID.String()).Msg("Failed to index invoice")
	}
}

// wrapf keeps sentinel errors visible to callers while adding context
func wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}
