package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig   Category = "config"
	CategoryStorage  Category = "storage"
	CategoryIdentity Category = "identity"
	CategoryCatalog  Category = "catalog"
	CategorySync     Category = "sync"
	CategoryServer   Category = "server"
	CategoryCLI      Category = "cli"
)

// ReelError is a structured error with a stable code, a suggestion, and
// a documentation link.
type ReelError struct {
	// Code is a unique error identifier (e.g., "E100").
	Code string

	// Category is the error type (config, storage, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *ReelError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *ReelError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *ReelError) WithSuggestion(s string) *ReelError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *ReelError) WithDetail(d string) *ReelError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *ReelError) Wrap(err error) *ReelError {
	e.Wrapped = err
	return e
}

// New creates a ReelError from a registered error code.
func New(code string) *ReelError {
	template, ok := registry[code]
	if !ok {
		return &ReelError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &ReelError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new ReelError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *ReelError {
	return &ReelError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a ReelError.
func FromError(err error, code string) *ReelError {
	if err == nil {
		return nil
	}
	if re, ok := err.(*ReelError); ok {
		return re
	}
	return New(code).Wrap(err)
}
