package dto

import (
	"example.com/backstage/invoicing/internal/models"

	"github.com/go-playground/validator/v10"
)

type CreateTemplateRequest struct {
	CustomerID      string               `json:"customer_id" validate:"required,uuid"`
	Name            string               `json:"name" validate:"required,max=255"`
	Currency        string               `json:"currency" validate:"required,len=3,uppercase"`
	Unit            string               `json:"unit" validate:"required,oneof=daily weekly monthly yearly"`
	Interval        int                  `json:"interval" validate:"required,min=1"`
	AnchorDate      string               `json:"anchor_date" validate:"required,datetime=2006-01-02"`
	EndStrategy     string               `json:"end_strategy" validate:"required,oneof=never on_date after_count"`
	EndDate         string               `json:"end_date" validate:"required_if=EndStrategy on_date,omitempty,datetime=2006-01-02"`
	MaxOccurrences  *int                 `json:"max_occurrences" validate:"required_if=EndStrategy after_count,omitempty,min=1"`
	PaymentTermDays int                  `json:"payment_term_days" validate:"gte=0,lte=365"`
	Lines           []LineRequest        `json:"lines" validate:"required,min=1,dive"`
	Installments    []InstallmentRequest `json:"installments" validate:"omitempty,dive"`
}

func (r *CreateTemplateRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *CreateTemplateRequest) ToTemplateParams() (models.TemplateParams, error) {
	customerID, err := parseID(r.CustomerID)
	if err != nil {
		return models.TemplateParams{}, err
	}
	anchor, err := ParseDate(r.AnchorDate)
	if err != nil {
		return models.TemplateParams{}, err
	}
	endDate, err := parseOptionalDate(r.EndDate)
	if err != nil {
		return models.TemplateParams{}, err
	}
	lines, err := toLineAmounts(r.Lines)
	if err != nil {
		return models.TemplateParams{}, err
	}

	return models.TemplateParams{
		CustomerID:      customerID,
		Name:            r.Name,
		Currency:        r.Currency,
		Unit:            models.FrequencyUnit(r.Unit),
		Interval:        r.Interval,
		AnchorDate:      anchor,
		EndStrategy:     models.EndStrategy(r.EndStrategy),
		EndDate:         endDate,
		MaxOccurrences:  r.MaxOccurrences,
		PaymentTermDays: r.PaymentTermDays,
		Lines:           lines,
		Installments:    toInstallmentTerms(r.Installments),
	}, nil
}
