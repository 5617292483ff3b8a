package services

import (
	"context"
	"time"

	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/repositories"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// QuoteService handles quotes and their conversion into invoices
type QuoteService struct {
	db          *gorm.DB
	quoteRepo   *repositories.QuoteRepository
	invoiceRepo *repositories.InvoiceRepository
	customers   *CustomerService
	numbers     *NumberingService
	invoices    *InvoiceService
	tracer      tracing.Tracer
}

// NewQuoteService creates a new quote service
func NewQuoteService(
	db *gorm.DB,
	readOnlyDB *gorm.DB,
	customers *CustomerService,
	numbers *NumberingService,
	invoices *InvoiceService,
	tracer tracing.Tracer,
) *QuoteService {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	return &QuoteService{
		db:          db,
		quoteRepo:   repositories.NewQuoteRepository(db, readOnlyDB),
		invoiceRepo: repositories.NewInvoiceRepository(db, readOnlyDB),
		customers:   customers,
		numbers:     numbers,
		invoices:    invoices,
		tracer:      tracer,
	}
}

// CreateQuote numbers, prices and stores a draft quote
func (s *QuoteService) CreateQuote(ctx context.Context, params models.QuoteParams) (*models.Quote, error) {
	ctx, txn, end := tracing.JoinOrStart(ctx, s.tracer, "create-quote")
	defer end()

	if err := s.customers.ensureCustomer(ctx, params.CustomerID); err != nil {
		return nil, err
	}
	if _, err := models.NewQuote("draft", params); err != nil {
		return nil, err
	}

	number, err := s.numbers.AllocateNumber(ctx, models.DocumentTypeQuote, params.IssueDate)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	quote, err := models.NewQuote(number, params)
	if err != nil {
		return nil, err
	}
	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	log.Info().
		Str("quote_id", quote.ID.String()).
		Str("number", quote.Number).
		Msg("Quote created")
	return quote, nil
}

// GetQuote loads a quote with its lines
func (s *QuoteService) GetQuote(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	return s.quoteRepo.GetByID(ctx, id)
}

// ListCustomerQuotes returns a page of a customer's quotes
func (s *QuoteService) ListCustomerQuotes(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]models.Quote, error) {
	return s.quoteRepo.ListByCustomer(ctx, customerID, limit, offset)
}

// UpdateQuoteStatus moves a quote between draft, sent and accepted
func (s *QuoteService) UpdateQuoteStatus(ctx context.Context, id uuid.UUID, status models.QuoteStatus) error {
	switch status {
	case models.QuoteStatusDraft, models.QuoteStatusSent, models.QuoteStatusAccepted:
	default:
		return errors.Wrapf(models.ErrInvalidDocument, "status %q cannot be set directly", status)
	}

	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if quote.Status == models.QuoteStatusConverted {
		return errors.Wrap(ErrQuoteNotConvertible, "quote is already converted")
	}
	return s.quoteRepo.UpdateStatus(ctx, id, status)
}

// ConvertQuote issues an invoice carrying the quote's lines and links it to
// the quote. A quote converts at most once; the row lock serializes
// concurrent conversions and the loser gets ErrQuoteNotConvertible.
func (s *QuoteService) ConvertQuote(ctx context.Context, id uuid.UUID, issueDate time.Time, paymentTermDays int) (*models.Invoice, error) {
	ctx, txn, end := tracing.JoinOrStart(ctx, s.tracer, "convert-quote")
	defer end()

	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.Convertible() {
		return nil, errors.Wrapf(ErrQuoteNotConvertible, "quote %s is %s", quote.Number, quote.Status)
	}

	number, err := s.numbers.AllocateNumber(ctx, models.DocumentTypeInvoice, issueDate)
	if err != nil {
		s.tracer.RecordError(txn, err)
		return nil, err
	}

	var invoice *models.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.quoteRepo.LockForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !locked.Convertible() {
			return errors.Wrapf(ErrQuoteNotConvertible, "quote %s was converted concurrently", locked.Number)
		}

		invoice, err = models.NewInvoice(number, models.InvoiceParams{
			CustomerID:      locked.CustomerID,
			IssueDate:       issueDate,
			Currency:        locked.Currency,
			PaymentTermDays: paymentTermDays,
			Lines:           locked.LineAmounts(),
		})
		if err != nil {
			return err
		}
		quoteID := locked.ID
		invoice.QuoteID = &quoteID

		if err := s.invoiceRepo.Create(ctx, tx, invoice); err != nil {
			return err
		}
		return s.quoteRepo.MarkConverted(ctx, tx, locked.ID, invoice.ID)
	})
	if err != nil {
		s.tracer.RecordError(txn, err)
		log.Warn().Err(err).Str("quote_id", id.String()).Str("number", number).Msg("Quote conversion failed, allocated number left unused")
		return nil, wrapf(err, "failed to convert quote %s", quote.Number)
	}

	log.Info().
		Str("quote_id", id.String()).
		Str("invoice_id", invoice.ID.String()).
		Str("number", invoice.Number).
		Msg("Quote converted to invoice")

	s.invoices.index(ctx, invoice)
	return invoice, nil
}
