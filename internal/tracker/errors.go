package tracker

import "errors"

// ValidationError signals an invalid state transition. The call is rejected
// and state is left unchanged; it is a user message, never fatal.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid operation: " + e.Reason
}

// IsValidationError reports whether err is a rejected transition.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func validationf(reason string) error {
	return &ValidationError{Reason: reason}
}
