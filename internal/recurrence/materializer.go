package recurrence

import (
	"context"
	stderrors "errors"
	"time"

	"example.com/backstage/invoicing/internal/models"
	"example.com/backstage/invoicing/internal/numbering"
	"example.com/backstage/invoicing/internal/repositories"
	"example.com/backstage/invoicing/internal/tracing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ErrOccurrenceAlreadyGenerated is returned when another run already produced
// the invoice for an occurrence. Callers treat it as a successful no-op.
var ErrOccurrenceAlreadyGenerated = errors.New("occurrence already generated")

// TemplateLocker loads and saves recurrence schedules inside a transaction
type TemplateLocker interface {
	LockForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.RecurrenceTemplate, error)
	SaveSchedule(ctx context.Context, tx *gorm.DB, template *models.RecurrenceTemplate) error
}

// InvoiceWriter persists generated invoices
type InvoiceWriter interface {
	Create(ctx context.Context, tx *gorm.DB, invoice *models.Invoice) error
	ExistsForOccurrence(ctx context.Context, tx *gorm.DB, templateID uuid.UUID, occurrenceAt time.Time) (bool, error)
}

// InvoiceIndexer makes committed invoices searchable
type InvoiceIndexer interface {
	IndexInvoice(ctx context.Context, invoice *models.Invoice) error
}

// Materializer turns one due occurrence of a template into a persisted invoice
type Materializer struct {
	db        *gorm.DB
	engine    *Engine
	templates TemplateLocker
	invoices  InvoiceWriter
	allocator numbering.Allocator
	indexer   InvoiceIndexer
	tracer    tracing.Tracer
}

// NewMaterializer creates a materializer. indexer may be nil.
func NewMaterializer(
	db *gorm.DB,
	engine *Engine,
	templates TemplateLocker,
	invoices InvoiceWriter,
	allocator numbering.Allocator,
	indexer InvoiceIndexer,
	tracer tracing.Tracer,
) *Materializer {
	if tracer == nil {
		tracer = tracing.NewNoopTracer()
	}
	return &Materializer{
		db:        db,
		engine:    engine,
		templates: templates,
		invoices:  invoices,
		allocator: allocator,
		indexer:   indexer,
		tracer:    tracer,
	}
}

// Materialize generates the invoice for the template's due occurrence and
// advances the template, both in one transaction holding the template's row
// lock. The number is allocated before that transaction and is lost (a gap)
// if the transaction does not commit. On success the schedule fields of
// template are updated in place.
func (m *Materializer) Materialize(ctx context.Context, template *models.RecurrenceTemplate, asOf time.Time) (*models.Invoice, error) {
	txn := tracing.FromContext(ctx)
	seedID := template.ID.String()

	occurrence, err := m.engine.DueOccurrence(template, asOf)
	if err != nil {
		return nil, err
	}

	exists, err := m.invoices.ExistsForOccurrence(ctx, nil, template.ID, occurrence)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrOccurrenceAlreadyGenerated
	}

	span := m.tracer.StartSpan("allocate-invoice-number", txn)
	number, err := m.allocator.Next(ctx, models.DocumentTypeInvoice, occurrence)
	span.End()
	if err != nil {
		return nil, err
	}

	invoice, err := BuildInvoice(template, number, occurrence)
	if err != nil {
		return nil, err
	}

	var advanced *models.RecurrenceTemplate
	persistSpan := m.tracer.StartSpan("persist-generated-invoice", txn)
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := m.templates.LockForUpdate(ctx, tx, template.ID)
		if err != nil {
			return err
		}
		if !sameOccurrence(locked, template) {
			return ErrOccurrenceAlreadyGenerated
		}

		if err := m.engine.Advance(locked, asOf); err != nil {
			return err
		}
		if err := m.templates.SaveSchedule(ctx, tx, locked); err != nil {
			return err
		}
		if err := m.invoices.Create(ctx, tx, invoice); err != nil {
			if stderrors.Is(err, repositories.ErrDuplicateKey) {
				return ErrOccurrenceAlreadyGenerated
			}
			return err
		}

		advanced = locked
		return nil
	})
	persistSpan.End()

	if err != nil {
		if stderrors.Is(err, ErrOccurrenceAlreadyGenerated) {
			log.Info().
				Str("seed_id", seedID).
				Str("number", number).
				Time("occurrence", occurrence).
				Msg("Occurrence generated concurrently, allocated number left unused")
			return nil, ErrOccurrenceAlreadyGenerated
		}
		return nil, errors.Wrapf(err, "failed to persist invoice for occurrence %s", occurrence.Format("2006-01-02"))
	}

	template.NextRunAt = advanced.NextRunAt
	template.LastRunAt = advanced.LastRunAt
	template.ScheduleIndex = advanced.ScheduleIndex
	template.OccurrenceCount = advanced.OccurrenceCount

	log.Info().
		Str("seed_id", seedID).
		Str("invoice_id", invoice.ID.String()).
		Str("number", invoice.Number).
		Time("occurrence", occurrence).
		Bool("terminal", template.Terminal()).
		Msg("Recurring invoice generated")

	if m.indexer != nil {
		indexSpan := m.tracer.StartSpan("index-invoice", txn)
		if err := m.indexer.IndexInvoice(ctx, invoice); err != nil {
			log.Warn().Err(err).Str("invoice_id", invoice.ID.String()).Msg("Failed to index generated invoice")
		}
		indexSpan.End()
	}

	return invoice, nil
}

// sameOccurrence reports whether the locked row still points at the
// occurrence the caller read
func sameOccurrence(locked, read *models.RecurrenceTemplate) bool {
	if locked.NextRunAt == nil || read.NextRunAt == nil {
		return false
	}
	return locked.ScheduleIndex == read.ScheduleIndex && locked.NextRunAt.Equal(*read.NextRunAt)
}

// BuildInvoice snapshots a template's lines and payment plan into a new invoice
// issued on the occurrence date
func BuildInvoice(template *models.RecurrenceTemplate, number string, occurrence time.Time) (*models.Invoice, error) {
	if len(template.Lines) == 0 {
		return nil, errors.Wrapf(models.ErrInvalidSchedule, "template %s has no lines", template.ID)
	}

	amounts := make([]models.LineAmounts, len(template.Lines))
	for i, l := range template.Lines {
		amounts[i] = l.LineAmounts
	}

	invoice, err := models.NewInvoice(number, models.InvoiceParams{
		CustomerID:      template.CustomerID,
		IssueDate:       occurrence,
		Currency:        template.Currency,
		PaymentTermDays: template.PaymentTermDays,
		Lines:           amounts,
		Installments:    template.InstallmentTerms(),
	})
	if err != nil {
		return nil, err
	}

	templateID := template.ID
	occurrenceAt := invoice.IssueDate
	invoice.RecurrenceTemplateID = &templateID
	invoice.OccurrenceAt = &occurrenceAt

	return invoice, nil
}
