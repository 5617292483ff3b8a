package dto

import (
	"time"

	"example.com/backstage/invoicing/internal/models"

	"github.com/go-playground/validator/v10"
)

// AllocateNumberRequest reserves one document number. Date defaults to today.
type AllocateNumberRequest struct {
	DocumentType string `json:"document_type" validate:"required,max=32"`
	Date         string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type AllocateNumberResponse struct {
	DocumentType string `json:"document_type"`
	Number       string `json:"number"`
}

func (r *AllocateNumberRequest) Validate() error {
	return validator.New().Struct(r)
}

// ToAllocation returns the document type and reference date
func (r *AllocateNumberRequest) ToAllocation() (models.DocumentType, time.Time, error) {
	date, err := parseDateOr(r.Date, today())
	if err != nil {
		return "", time.Time{}, err
	}
	return models.DocumentType(r.DocumentType), date, nil
}
