package analytics

import "errors"

// ValidationError reports a locally detected precondition violation.
// It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "analytics: " + e.Field + ": " + e.Message
}

// IsValidation returns true if the error is a local precondition
// violation.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}
