package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInvalidDocument is returned when an invoice or quote cannot be built
var ErrInvalidDocument = errors.New("invalid document")

// InvoiceParams is the content of a new invoice apart from its number
type InvoiceParams struct {
	CustomerID      uuid.UUID
	IssueDate       time.Time
	Currency        string
	PaymentTermDays int
	Lines           []LineAmounts
	Installments    []InstallmentTerm
}

// NewInvoice prices an issued invoice. Lines are numbered in slice order and
// the due date follows the installment plan when there is one.
func NewInvoice(number string, p InvoiceParams) (*Invoice, error) {
	if number == "" {
		return nil, errors.Wrap(ErrInvalidDocument, "number is required")
	}
	if len(p.Lines) == 0 {
		return nil, errors.Wrap(ErrInvalidDocument, "at least one line is required")
	}
	if p.PaymentTermDays < 0 {
		return nil, errors.Wrap(ErrInvalidDocument, "payment terms must not be negative")
	}

	issueDate := p.IssueDate.UTC()
	totals := SumLines(p.Lines)

	installments, err := ScheduleInstallments(issueDate, totals.Gross, p.Installments)
	if err != nil {
		return nil, err
	}

	lines := make([]InvoiceLine, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = InvoiceLine{Position: i + 1, LineAmounts: l}
	}

	return &Invoice{
		ID:           uuid.New(),
		Number:       number,
		CustomerID:   p.CustomerID,
		Status:       InvoiceStatusIssued,
		IssueDate:    issueDate,
		DueDate:      DueDate(issueDate, p.PaymentTermDays, installments),
		Currency:     p.Currency,
		NetTotal:     totals.Net,
		TaxTotal:     totals.Tax,
		GrossTotal:   totals.Gross,
		Lines:        lines,
		Installments: installments,
	}, nil
}

// QuoteParams is the content of a new quote apart from its number
type QuoteParams struct {
	CustomerID uuid.UUID
	IssueDate  time.Time
	ValidUntil time.Time
	Currency   string
	Lines      []LineAmounts
}

// NewQuote prices a draft quote
func NewQuote(number string, p QuoteParams) (*Quote, error) {
	if number == "" {
		return nil, errors.Wrap(ErrInvalidDocument, "number is required")
	}
	if len(p.Lines) == 0 {
		return nil, errors.Wrap(ErrInvalidDocument, "at least one line is required")
	}
	issueDate := p.IssueDate.UTC()
	validUntil := p.ValidUntil.UTC()
	if validUntil.Before(issueDate) {
		return nil, errors.Wrap(ErrInvalidDocument, "valid until is before the issue date")
	}

	totals := SumLines(p.Lines)
	lines := make([]QuoteLine, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = QuoteLine{Position: i + 1, LineAmounts: l}
	}

	return &Quote{
		ID:         uuid.New(),
		Number:     number,
		CustomerID: p.CustomerID,
		Status:     QuoteStatusDraft,
		IssueDate:  issueDate,
		ValidUntil: validUntil,
		Currency:   p.Currency,
		NetTotal:   totals.Net,
		TaxTotal:   totals.Tax,
		GrossTotal: totals.Gross,
		Lines:      lines,
	}, nil
}

// Convertible reports whether the quote can still become an invoice
func (q *Quote) Convertible() bool {
	return q.InvoiceID == nil && (q.Status == QuoteStatusSent || q.Status == QuoteStatusAccepted)
}

// LineAmounts returns the priced content of the quote's lines
func (q *Quote) LineAmounts() []LineAmounts {
	amounts := make([]LineAmounts, len(q.Lines))
	for i, l := range q.Lines {
		amounts[i] = l.LineAmounts
	}
	return amounts
}
