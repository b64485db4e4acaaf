package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoLineItems  = errors.New("at least one line item is required")
	ErrMissingField = errors.New("required field is missing")
	ErrNotNumeric   = errors.New("value is not numeric")
	ErrOutOfRange   = errors.New("value is out of range")

	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicateNumber is returned by an InvoiceStore when the number is taken.
	ErrDuplicateNumber = errors.New("invoice number already exists")
	// ErrDuplicateProduct is returned by a CatalogStore when the case-insensitive name is taken.
	ErrDuplicateProduct = errors.New("product already exists")

	// ErrCapacityExhausted means no free invoice number was found within the configured attempts.
	ErrCapacityExhausted = errors.New("invoice number allocation exhausted")

	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError wraps a validation sentinel with the offending field.
type ValidationError struct {
	Err     error
	Field   string
	Details string
}

func (e *ValidationError) Error() string {
	msg := e.Err.Error()
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(err error, field, details string) *ValidationError {
	return &ValidationError{Err: err, Field: field, Details: details}
}

// CatalogSyncError records a failed usage update for one product after an
// invoice was already committed. It is logged, never returned by Issue.
type CatalogSyncError struct {
	Product string
	Err     error
}

func (e *CatalogSyncError) Error() string {
	return fmt.Sprintf("catalog sync %q: %v", e.Product, e.Err)
}

func (e *CatalogSyncError) Unwrap() error {
	return e.Err
}

// Unavailable wraps a store failure so callers can match ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, err)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateNumber) ||
		errors.Is(err, ErrDuplicateProduct) ||
		errors.Is(err, ErrCapacityExhausted)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrInvoiceNotFound) || errors.Is(err, ErrProductNotFound)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
