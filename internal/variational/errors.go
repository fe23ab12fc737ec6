package variational

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrShapeMismatch = errors.New("shape mismatch")
	ErrBiasMismatch  = errors.New("bias presence mismatch")
	ErrPriorMismatch = errors.New("prior mismatch")
)

// ConfigurationError reports a malformed configuration or parameter set.
// Err is one of the sentinel errors above.
type ConfigurationError struct {
	Field   string // Config field or parameter name
	Details string // Additional details
	Err     error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("variational: %v: %s: %s", e.Err, e.Field, e.Details)
}

// Unwrap returns the sentinel error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configError(err error, field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Details: fmt.Sprintf(format, args...), Err: err}
}
