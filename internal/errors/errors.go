package errors

import (
	"context"
	"errors"
	"fmt"
)

// PipelineError is the structured error type for pdfrag.
// It carries the failure kind callers branch on plus context for logging and
// user presentation.
type PipelineError struct {
	// Code is the unique error code (e.g., "ERR_202_DECRYPTION_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Kind is the failure kind derived from Code.
	Kind Kind

	// Category is the error category (Config, IO, Provider, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a PipelineError with the same code.
func (e *PipelineError) Is(target error) bool {
	if t, ok := target.(*PipelineError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *PipelineError) WithDetail(key, value string) *PipelineError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *PipelineError) WithSuggestion(suggestion string) *PipelineError {
	e.Suggestion = suggestion
	return e
}

// New creates a PipelineError. Kind, category, severity and the retryable
// flag are derived from the code.
func New(code string, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Kind:      kindFromCode(code),
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PipelineError from an existing error, reusing its message.
func Wrap(code string, err error) *PipelineError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels usable with errors.Is. Matching is by code.
var (
	ErrExtraction  = New(ErrCodeExtractionFailed, "extraction failed", nil)
	ErrDecryption  = New(ErrCodeDecryptionFailed, "decryption failed", nil)
	ErrPersistence = New(ErrCodePersistenceFailed, "persistence failed", nil)
	ErrNotBuilt    = New(ErrCodeIndexNotBuilt, "index not built", nil)
	ErrNotReady    = New(ErrCodeNotReady, "pipeline not ready", nil)
	ErrCancelled   = New(ErrCodeCancelled, "operation cancelled", nil)
)

// ExtractionError reports an unreadable or corrupt document.
func ExtractionError(message string, cause error) *PipelineError {
	return New(ErrCodeExtractionFailed, message, cause)
}

// DecryptionError reports a missing or wrong password for an encrypted document.
func DecryptionError(message string, cause error) *PipelineError {
	return New(ErrCodeDecryptionFailed, message, cause).
		WithSuggestion("Pass the document password with --password")
}

// ConfigError reports invalid configuration.
func ConfigError(message string, cause error) *PipelineError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// EmbeddingError reports an embedding provider failure.
func EmbeddingError(message string, cause error) *PipelineError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// NotBuiltError reports a query against an index that was never built.
func NotBuiltError(message string) *PipelineError {
	return New(ErrCodeIndexNotBuilt, message, nil)
}

// NotReadyError reports a question asked before a document was processed or loaded.
func NotReadyError(message string) *PipelineError {
	return New(ErrCodeNotReady, message, nil).
		WithSuggestion("Process a PDF or load a persisted index first")
}

// PersistenceError reports a failure reading or writing a persistence directory.
func PersistenceError(message string, cause error) *PipelineError {
	return New(ErrCodePersistenceFailed, message, cause)
}

// GenerationError reports an answer generator failure.
func GenerationError(message string, cause error) *PipelineError {
	return New(ErrCodeGenerationFailed, message, cause)
}

// ValidationError reports invalid caller input.
func ValidationError(message string, cause error) *PipelineError {
	return New(ErrCodeInvalidInput, message, cause)
}

// CancelledError reports that the caller cancelled or timed out the operation.
func CancelledError(message string, cause error) *PipelineError {
	return New(ErrCodeCancelled, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *PipelineError {
	return New(ErrCodeInternal, message, cause)
}

// FromContext converts a context cancellation into a CancelledError.
// Non-context errors are returned unchanged.
func FromContext(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) && pe.Kind == KindCancelled {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CancelledError("operation cancelled", err)
	}
	if ctx != nil && ctx.Err() != nil {
		return CancelledError("operation cancelled", ctx.Err())
	}
	return err
}

// KindOf returns the failure kind of err, or an empty Kind when err carries none.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsKind reports whether err carries the given failure kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	if IsKind(err, KindCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
