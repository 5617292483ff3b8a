package dto

import (
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/go-playground/validator/v10"
)

type CreateQuoteRequest struct {
	CustomerID string        `json:"customer_id" validate:"required,uuid"`
	IssueDate  string        `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	ValidUntil string        `json:"valid_until" validate:"required,datetime=2006-01-02"`
	Currency   string        `json:"currency" validate:"required,len=3,uppercase"`
	Lines      []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

type UpdateQuoteStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft sent accepted"`
}

type ConvertQuoteRequest struct {
	IssueDate       string `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentTermDays int    `json:"payment_term_days" validate:"gte=0,lte=365"`
}

func (r *CreateQuoteRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *CreateQuoteRequest) ToQuoteParams() (models.QuoteParams, error) {
	customerID, err := parseID(r.CustomerID)
	if err != nil {
		return models.QuoteParams{}, err
	}
	issueDate, err := parseDateOr(r.IssueDate, today())
	if err != nil {
		return models.QuoteParams{}, err
	}
	validUntil, err := ParseDate(r.ValidUntil)
	if err != nil {
		return models.QuoteParams{}, err
	}
	lines, err := toLineAmounts(r.Lines)
	if err != nil {
		return models.QuoteParams{}, err
	}

	return models.QuoteParams{
		CustomerID: customerID,
		IssueDate:  issueDate,
		ValidUntil: validUntil,
		Currency:   r.Currency,
		Lines:      lines,
	}, nil
}

func (r *UpdateQuoteStatusRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *ConvertQuoteRequest) Validate() error {
	return validator.New().Struct(r)
}

// IssueDateOrToday returns the requested issue date, today when absent
func (r *ConvertQuoteRequest) IssueDateOrToday() (time.Time, error) {
	return parseDateOr(r.IssueDate, today())
}
