package dto

import (
	"example.com/backstage/invoicing/internal/models"

	"github.com/go-playground/validator/v10"
)

type CreateCustomerRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Address string `json:"address" validate:"omitempty,max=1024"`
	VATID   string `json:"vat_id" validate:"omitempty,max=64"`
}

func (r *CreateCustomerRequest) Validate() error {
	return validator.New().Struct(r)
}

func (r *CreateCustomerRequest) ToCustomer() *models.Customer {
	return &models.Customer{
		Name:    r.Name,
		Email:   r.Email,
		Address: r.Address,
		VATID:   r.VATID,
	}
}
