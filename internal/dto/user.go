package dto

import "github.com/go-playground/validator/v10"

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (r *CreateUserRequest) Validate() error {
	return validator.New().Struct(r)
}
