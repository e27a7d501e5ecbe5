// Package template contains pure functions for loading, validating, and
// rendering environment templates. This is part of the Functional Core -
// all functions are pure with no I/O.
package template

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrEmptyInput    = errors.New("template document is empty")
	ErrInvalidYAML   = errors.New("invalid YAML syntax")
	ErrUnknownPreset = errors.New("unknown preset")
)

// ParseError wraps errors with context about where template parsing failed.
type ParseError struct {
	Field   string // e.g., "filesystem[3].kind"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
