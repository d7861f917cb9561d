// Package errors provides structured error types for the Tributary pipeline.
// All errors include a category, code, message, and retryable flag so the
// orchestrator can decide between aborting a run and skipping a row.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage.
type ErrorCategory string

const (
	ErrCategoryFetch     ErrorCategory = "FETCH"
	ErrCategoryDecode    ErrorCategory = "DECODE"
	ErrCategorySchema    ErrorCategory = "SCHEMA"
	ErrCategoryPublisher ErrorCategory = "PUBLISHER"
	ErrCategoryStore     ErrorCategory = "STORE"
	ErrCategoryInternal  ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Fetch codes
	CodeObjectFetchFailed = "OBJECT_FETCH_FAILED"
	CodeDecompressFailed  = "DECOMPRESS_FAILED"
	CodeRecordParseFailed = "RECORD_PARSE_FAILED"

	// Decode codes
	CodePayloadDecodeFailed = "PAYLOAD_DECODE_FAILED"

	// Schema codes
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeUnknownField         = "UNKNOWN_FIELD"

	// Publisher codes
	CodeUnknownPublisher = "UNKNOWN_PUBLISHER"

	// Store codes
	CodeWriteFailed = "WRITE_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// As reports whether err's chain contains a *PipelineError and, if so,
// assigns it to target.
func As(err error, target **PipelineError) bool {
	return errors.As(err, target)
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only transient
// network-facing failures qualify; everything else needs operator attention.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryFetch && code == CodeObjectFetchFailed:
		return true
	case category == ErrCategoryStore && code == CodeWriteFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewFetchError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryFetch, code, message, cause)
}

func NewDecodeError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryDecode, CodePayloadDecodeFailed, message, cause)
}

func NewSchemaError(code, message string) *PipelineError {
	return New(ErrCategorySchema, code, message)
}

func NewUnknownPublisherError(name string) *PipelineError {
	return New(ErrCategoryPublisher, CodeUnknownPublisher, fmt.Sprintf("no publisher registered under %q", name))
}

func NewStoreError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, CodeWriteFailed, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
