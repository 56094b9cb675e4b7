package booking

import (
	"errors"
	"fmt"
)

// Sentinel errors callers branch on. Anything else from this package is a
// storage-layer failure and should surface as a generic retry message.
var (
	// ErrSlotConflict means the requested slot was taken by a concurrent
	// booking after the advisory availability read.
	ErrSlotConflict = errors.New("requested slot is no longer available")
	// ErrNotFound means the appointment does not exist or does not belong
	// to the requesting customer.
	ErrNotFound = errors.New("appointment not found")
)

// ValidationError reports a malformed or out-of-policy booking field. It is
// surfaced to the user as a clarification request, never a system error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a field-scoped validation failure.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// AsValidationError unwraps err into a *ValidationError when possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
