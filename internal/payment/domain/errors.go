package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a payment does not exist.
	ErrNotFound = errors.New("payment not found")

	// ErrInvalidTransition is returned when a state-machine guard rejects a transition.
	ErrInvalidTransition = errors.New("invalid payment state transition")

	// ErrVersionConflict is returned when an optimistic update loses a concurrent race.
	ErrVersionConflict = errors.New("payment was modified concurrently")

	// ErrDuplicateReference is returned when a payment reference already exists.
	ErrDuplicateReference = errors.New("payment reference already exists")

	// ErrDuplicatePeriod is returned when a recurring payment already exists
	// for the same tenant and billing period.
	ErrDuplicatePeriod = errors.New("recurring payment already exists for period")

	// ErrDuplicateEvent is returned when a webhook event was already processed.
	ErrDuplicateEvent = errors.New("webhook event already processed")

	// ErrSignature is returned when a webhook signature does not verify.
	ErrSignature = errors.New("webhook signature verification failed")
)

// ValidationError reports invalid caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GatewayError wraps a failure reported by the external payment provider.
// Code and Message carry the provider's values verbatim for display and
// for reconciliation against the provider dashboard.
type GatewayError struct {
	Operation string
	Code      string
	Message   string
}

func (e *GatewayError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s failed: %s (%s)", e.Operation, e.Message, e.Code)
	}
	return fmt.Sprintf("gateway %s failed: %s", e.Operation, e.Message)
}

// IsGatewayError reports whether err wraps a GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}
