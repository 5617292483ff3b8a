package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidLine is returned when a line item cannot be priced
var ErrInvalidLine = errors.New("invalid line item")

// ErrInvalidInstallments is returned when an installment plan does not add up
var ErrInvalidInstallments = errors.New("invalid installment plan")

// LineAmounts is the priced content shared by quote, template and invoice lines.
// Net, Tax and Gross are always derived from Quantity, Rate and TaxRate.
type LineAmounts struct {
	Description string          `gorm:"size:1024;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	Rate        decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"rate"`
	TaxRate     decimal.Decimal `gorm:"type:numeric(6,3);not null" json:"tax_rate"`
	Net         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"net"`
	Tax         decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"tax"`
	Gross       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"gross"`
}

// NewLineAmounts prices a line. The tax rate is a percentage (19 means 19%).
func NewLineAmounts(description string, quantity, rate, taxRate decimal.Decimal) (LineAmounts, error) {
	if description == "" {
		return LineAmounts{}, errors.Wrap(ErrInvalidLine, "description is required")
	}
	if !quantity.IsPositive() {
		return LineAmounts{}, errors.Wrap(ErrInvalidLine, "quantity must be positive")
	}
	if rate.IsNegative() {
		return LineAmounts{}, errors.Wrap(ErrInvalidLine, "rate must not be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return LineAmounts{}, errors.Wrap(ErrInvalidLine, "tax rate must be between 0 and 100")
	}

	net := quantity.Mul(rate).Round(2)
	tax := net.Mul(taxRate).Div(hundred).Round(2)

	return LineAmounts{
		Description: description,
		Quantity:    quantity,
		Rate:        rate,
		TaxRate:     taxRate,
		Net:         net,
		Tax:         tax,
		Gross:       net.Add(tax),
	}, nil
}

// Totals is the sum over a document's lines
type Totals struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

// SumLines adds up already priced lines
func SumLines(lines []LineAmounts) Totals {
	t := Totals{Net: decimal.Zero, Tax: decimal.Zero, Gross: decimal.Zero}
	for _, l := range lines {
		t.Net = t.Net.Add(l.Net)
		t.Tax = t.Tax.Add(l.Tax)
		t.Gross = t.Gross.Add(l.Gross)
	}
	return t
}

// InstallmentTerm is one step of an installment plan: a share of the gross
// total falling due OffsetDays after the issue date.
type InstallmentTerm struct {
	Percentage decimal.Decimal
	OffsetDays int
}

// ScheduleInstallments splits gross across the plan. Percentages must add up
// to 100 and offsets must not decrease; rounding leftovers land on the last installment.
func ScheduleInstallments(issueDate time.Time, gross decimal.Decimal, terms []InstallmentTerm) ([]InvoiceInstallment, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	sum := decimal.Zero
	prevOffset := 0
	for i, term := range terms {
		if !term.Percentage.IsPositive() {
			return nil, errors.Wrapf(ErrInvalidInstallments, "installment %d percentage must be positive", i+1)
		}
		if term.OffsetDays < prevOffset {
			return nil, errors.Wrapf(ErrInvalidInstallments, "installment %d falls due before the previous one", i+1)
		}
		prevOffset = term.OffsetDays
		sum = sum.Add(term.Percentage)
	}
	if !sum.Equal(hundred) {
		return nil, errors.Wrapf(ErrInvalidInstallments, "percentages add up to %s, expected 100", sum.String())
	}

	installments := make([]InvoiceInstallment, len(terms))
	allocated := decimal.Zero
	for i, term := range terms {
		amount := gross.Mul(term.Percentage).Div(hundred).Round(2)
		if i == len(terms)-1 {
			amount = gross.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		installments[i] = InvoiceInstallment{
			Sequence: i + 1,
			DueDate:  issueDate.AddDate(0, 0, term.OffsetDays),
			Amount:   amount,
		}
	}

	return installments, nil
}

// DueDate returns the date an invoice is due: the last installment when a plan
// exists, otherwise the issue date plus the payment terms.
func DueDate(issueDate time.Time, paymentTermDays int, installments []InvoiceInstallment) time.Time {
	if len(installments) > 0 {
		return installments[len(installments)-1].DueDate
	}
	return issueDate.AddDate(0, 0, paymentTermDays)
}
