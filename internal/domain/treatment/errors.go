package treatment

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the treatment record itself does not exist.
	ErrNotFound = errors.New("treatment not found")

	// ErrConflict is returned when a versioned write lost a race with a
	// concurrent mutation of the same record. Callers may reload and retry.
	ErrConflict = errors.New("treatment was modified concurrently")
)

// ValidationError rejects an input before any mutation is applied; the record
// is left unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
