package utils

import (
	"errors"
	"fmt"
)

// Input-shape and processing error codes reported as runError.
const (
	CodeNoTransactions       = 401
	CodeMissingAsOfDate      = 402
	CodeMalformedDate        = 403
	CodeSingleRecord         = 404
	CodeNoCreditTransactions = 405
	CodeSingleCreditOrDebit  = 406
	CodeProcessingError      = 500
)

var codeMessages = map[int]string{
	CodeNoTransactions:       "No transactions found",
	CodeMissingAsOfDate:      "asOfDate is missing",
	CodeMalformedDate:        "Malformed date",
	CodeSingleRecord:         "Single transaction record found",
	CodeNoCreditTransactions: "No credit transactions found",
	CodeSingleCreditOrDebit:  "Only one credit or debit transaction found",
	CodeProcessingError:      "Error while processing request",
}

// ValidationError represents an error occurring during request validation,
// before the pipeline runs.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// NewFieldValidationError creates a ValidationError bound to a request field.
func NewFieldValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PipelineError is the single error type raised by pipeline stages. It carries
// the machine-readable code that ends up in runError.
type PipelineError struct {
	Code    int
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pipeline error %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("pipeline error %d: %s", e.Code, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError builds a PipelineError using the canonical message for code.
func NewPipelineError(code int) *PipelineError {
	return &PipelineError{Code: code, Message: MessageForCode(code)}
}

// WrapPipelineError attaches a cause to a canonical PipelineError.
func WrapPipelineError(code int, err error) *PipelineError {
	return &PipelineError{Code: code, Message: MessageForCode(code), Err: err}
}

// MessageForCode returns the short message for a known code.
func MessageForCode(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return codeMessages[CodeProcessingError]
}

// AsPipelineError converts any error into a PipelineError. Unknown errors
// become a generic processing error.
func AsPipelineError(err error) *PipelineError {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return WrapPipelineError(CodeProcessingError, err)
}
