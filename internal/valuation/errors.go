// Package valuation computes DCF, comparable-multiple, sensitivity and
// scenario valuations and records them through the store.
package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// FieldError is a single input violation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + " " + e.Message
}

// InvalidInputError lists every violated input field.
type InvalidInputError struct {
	Fields []FieldError `json:"fields"`
}

func (e *InvalidInputError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return "valuation: invalid input: " + strings.Join(parts, "; ")
}

// IsInvalidInput reports whether err carries an InvalidInputError.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}

// fieldErrors accumulates violations while checking inputs.
type fieldErrors []FieldError

func (fe *fieldErrors) add(field, format string, args ...any) {
	*fe = append(*fe, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (fe *fieldErrors) between(field string, v, lo, hi float64) {
	if !(v >= lo && v <= hi) {
		fe.add(field, "must be between %g and %g, got %g", lo, hi, v)
	}
}

// finite records a violation for NaN or infinite values and reports whether
// v was usable.
func (fe *fieldErrors) finite(field string, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		fe.add(field, "must be a finite number, got %g", v)
		return false
	}
	return true
}

func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return &InvalidInputError{Fields: fe}
}

func invalid(field, format string, args ...any) error {
	var fe fieldErrors
	fe.add(field, format, args...)
	return fe.err()
}
