package dto

import (
	"example.com/backstage/invoicing/internal/models"

	"github.com/go-playground/validator/v10"
)

type CreateInvoiceRequest struct {
	CustomerID      string               `json:"customer_id" validate:"required,uuid"`
	IssueDate       string               `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	Currency        string               `json:"currency" validate:"required,len=3,uppercase"`
	PaymentTermDays int                  `json:"payment_term_days" validate:"gte=0,lte=365"`
	Lines           []LineRequest        `json:"lines" validate:"required,min=1,dive"`
	Installments    []InstallmentRequest `json:"installments" validate:"omitempty,dive"`
}

func (r *CreateInvoiceRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *CreateInvoiceRequest) ToInvoiceParams() (models.InvoiceParams, error) {
	customerID, err := parseID(r.CustomerID)
	if err != nil {
		return models.InvoiceParams{}, err
	}
	issueDate, err := parseDateOr(r.IssueDate, today())
	if err != nil {
		return models.InvoiceParams{}, err
	}
	lines, err := toLineAmounts(r.Lines)
	if err != nil {
		return models.InvoiceParams{}, err
	}

	return models.InvoiceParams{
		CustomerID:      customerID,
		IssueDate:       issueDate,
		Currency:        r.Currency,
		PaymentTermDays: r.PaymentTermDays,
		Lines:           lines,
		Installments:    toInstallmentTerms(r.Installments),
	}, nil
}
