package utils

import "errors"

// Common application errors used across services.
var (
	ErrInvalidToken    = errors.New("INVALID_TOKEN")
	ErrValidation      = errors.New("VALIDATION_FAILED")
	ErrForbidden       = errors.New("FORBIDDEN")
	ErrNotFound        = errors.New("NOT_FOUND")
	ErrProductNotFound = errors.New("PRODUCT_NOT_FOUND")
	ErrVendorNotFound  = errors.New("VENDOR_NOT_FOUND")
	ErrEmailTaken      = errors.New("EMAIL_TAKEN")
	ErrBadCredentials  = errors.New("BAD_CREDENTIALS")
)
