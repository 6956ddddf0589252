package builtin

import (
	"errors"
	"fmt"
)

// ErrSchemaViolation marks a value that cannot be safely defaulted: a
// non-numeric customer id, a malformed date or a malformed sale key. It
// fails the whole batch it was found in.
var ErrSchemaViolation = errors.New("schema violation")

// ErrMissingColumn reports a required source column absent from the header.
var ErrMissingColumn = errors.New("missing required column")

// SchemaError locates a schema violation in the source file.
type SchemaError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%v: line %d: column %s: %v", ErrSchemaViolation, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%v: line %d: column %s: value %q: %v", ErrSchemaViolation, e.Line, e.Column, e.Value, e.Err)
}

// Unwrap exposes both ErrSchemaViolation and the underlying cause.
func (e *SchemaError) Unwrap() []error { return []error{ErrSchemaViolation, e.Err} }
