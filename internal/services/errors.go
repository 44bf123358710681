package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedInput marks a structured field that could not be decoded.
	ErrMalformedInput = errors.New("malformed input")
	// ErrNotFound marks a read or update target that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a write rejected by a uniqueness or reference constraint.
	ErrConflict = errors.New("conflict")
)

// FieldError is a single violated constraint.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every constraint violated by a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ByField groups messages by field name.
func (e *ValidationError) ByField() map[string][]string {
	out := make(map[string][]string, len(e.Fields))
	for _, f := range e.Fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}

// WithFieldErrors merges field errors found while decoding a request with the
// result of validating what was decoded. A field that failed to decode keeps
// only its decode message. Errors other than validation failures are
// returned as they are.
func WithFieldErrors(decoded []FieldError, err error) error {
	if len(decoded) == 0 {
		return err
	}
	var verr *ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}

	fields := append([]FieldError(nil), decoded...)
	seen := make(map[string]bool, len(decoded))
	for _, f := range decoded {
		seen[f.Field] = true
	}
	if verr != nil {
		for _, f := range verr.Fields {
			if !seen[f.Field] {
				fields = append(fields, f)
			}
		}
	}
	return &ValidationError{Fields: fields}
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// MissingReferenceError reports a foreign key that points at nothing at the
// time of the write.
type MissingReferenceError struct {
	Entity string
	Field  string
	ID     int64
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%s with ID %d not found (%s)", e.Entity, e.ID, e.Field)
}

// OrderCreationError wraps an unexpected fault during the order write. The
// transaction has been rolled back by the time it is returned.
type OrderCreationError struct {
	Cause error
}

func (e *OrderCreationError) Error() string {
	return "order creation failed: " + e.Cause.Error()
}

func (e *OrderCreationError) Unwrap() error {
	return e.Cause
}
