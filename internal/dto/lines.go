package dto

import (
	"example.com/backstage/invoicing/internal/models"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// LineRequest is one priced position on a document
type LineRequest struct {
	Description string          `json:"description" validate:"required,max=1024"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// InstallmentRequest is one step of an installment plan
type InstallmentRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
	OffsetDays int             `json:"offset_days" validate:"gte=0"`
}

func toLineAmounts(lines []LineRequest) ([]models.LineAmounts, error) {
	amounts := make([]models.LineAmounts, len(lines))
	for i, l := range lines {
		a, err := models.NewLineAmounts(l.Description, l.Quantity, l.Rate, l.TaxRate)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+1)
		}
		amounts[i] = a
	}
	return amounts, nil
}

func toInstallmentTerms(installments []InstallmentRequest) []models.InstallmentTerm {
	if len(installments) == 0 {
		return nil
	}
	terms := make([]models.InstallmentTerm, len(installments))
	for i, inst := range installments {
		terms[i] = models.InstallmentTerm{Percentage: inst.Percentage, OffsetDays: inst.OffsetDays}
	}
	return terms
}
