package numbering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrUnknownDocumentType is returned for a document type without a number format
var ErrUnknownDocumentType = errors.New("unknown document type")

// SequenceStore hands out per (document type, year) counter values.
// A value returned by Reserve is committed and never handed out again.
type SequenceStore interface {
	Reserve(ctx context.Context, docType models.DocumentType, year int) (int64, error)
}

// Allocator produces formatted document numbers
type Allocator interface {
	Next(ctx context.Context, docType models.DocumentType, referenceDate time.Time) (string, error)
}

// Format is the number layout of one document type
type Format struct {
	Prefix  string
	Padding int
}

// DocumentNumberAllocator turns sequence values into numbers like INV-2026-000001
type DocumentNumberAllocator struct {
	store            SequenceStore
	formats          map[models.DocumentType]Format
	fiscalStartMonth time.Month
}

// NewDocumentNumberAllocator creates an allocator from the numbering configuration
func NewDocumentNumberAllocator(store SequenceStore, cfg config.NumberingConfig) *DocumentNumberAllocator {
	formats := make(map[models.DocumentType]Format, len(cfg.Formats))
	for name, f := range cfg.Formats {
		formats[models.DocumentType(strings.ToLower(name))] = Format{Prefix: f.Prefix, Padding: f.Padding}
	}

	start := time.Month(cfg.FiscalYearStartMonth)
	if start < time.January || start > time.December {
		start = time.January
	}

	return &DocumentNumberAllocator{
		store:            store,
		formats:          formats,
		fiscalStartMonth: start,
	}
}

// Next reserves the next number for docType in the fiscal year containing
// referenceDate. The reservation is committed before Next returns, so a
// number is never handed out twice even if the caller later fails.
func (a *DocumentNumberAllocator) Next(ctx context.Context, docType models.DocumentType, referenceDate time.Time) (string, error) {
	format, ok := a.formats[docType]
	if !ok {
		return "", errors.Wrapf(ErrUnknownDocumentType, "%q", docType)
	}

	year := FiscalYear(referenceDate, a.fiscalStartMonth)

	value, err := a.store.Reserve(ctx, docType, year)
	if err != nil {
		return "", errors.Wrap(err, "failed to allocate document number")
	}

	number := FormatNumber(format, year, value)

	log.Debug().
		Str("document_type", string(docType)).
		Int("year", year).
		Str("number", number).
		Msg("Document number allocated")

	return number, nil
}

// FiscalYear labels the fiscal year containing date by the calendar year it starts in
func FiscalYear(date time.Time, startMonth time.Month) int {
	year := date.Year()
	if date.Month() < startMonth {
		year--
	}
	return year
}

// FormatNumber renders PREFIX-YEAR-NNNNNN
func FormatNumber(f Format, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%0*d", f.Prefix, year, f.Padding, value)
}
