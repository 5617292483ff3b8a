package services

import "github.com/pkg/errors"

var (
	// ErrQuoteNotConvertible is returned when a quote is not accepted or already converted
	ErrQuoteNotConvertible = errors.New("quote cannot be converted")
	// ErrInvalidCredentials is returned when an email and password do not match
	ErrInvalidCredentials = errors.New("invalid credentials")
)
