// Package errors provides structured error handling for pdfrag.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Document and storage I/O errors
//   - 3XX: Provider errors (embedding model, language model)
//   - 4XX: State and input validation errors
//   - 5XX: Internal errors and cancellation
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates document, file and persistence errors.
	CategoryIO Category = "IO"
	// CategoryProvider indicates embedding or generation provider errors.
	CategoryProvider Category = "PROVIDER"
	// CategoryState indicates an operation invoked in the wrong state or with bad input.
	CategoryState Category = "STATE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Kind is the failure kind reported to callers. Every PipelineError maps to
// exactly one Kind.
type Kind string

const (
	KindExtraction  Kind = "ExtractionError"
	KindDecryption  Kind = "DecryptionError"
	KindConfig      Kind = "ConfigError"
	KindEmbedding   Kind = "EmbeddingError"
	KindNotBuilt    Kind = "NotBuiltError"
	KindNotReady    Kind = "NotReadyError"
	KindPersistence Kind = "PersistenceError"
	KindGeneration  Kind = "GenerationError"
	KindValidation  Kind = "ValidationError"
	KindCancelled   Kind = "CancelledError"
	KindInternal    Kind = "InternalError"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid      = "ERR_101_CONFIG_INVALID"
	ErrCodeMissingCredentials = "ERR_102_MISSING_CREDENTIALS"
	ErrCodeInvalidChunking    = "ERR_103_INVALID_CHUNKING"
	ErrCodeEmbedderMismatch   = "ERR_104_EMBEDDER_MISMATCH"

	// IO errors (200-299)
	ErrCodeExtractionFailed  = "ERR_201_EXTRACTION_FAILED"
	ErrCodeDecryptionFailed  = "ERR_202_DECRYPTION_FAILED"
	ErrCodePersistenceFailed = "ERR_203_PERSISTENCE_FAILED"
	ErrCodeIndexLocked       = "ERR_204_INDEX_LOCKED"

	// Provider errors (300-399)
	ErrCodeEmbeddingFailed     = "ERR_301_EMBEDDING_FAILED"
	ErrCodeGenerationFailed    = "ERR_302_GENERATION_FAILED"
	ErrCodeProviderUnavailable = "ERR_303_PROVIDER_UNAVAILABLE"

	// State and validation errors (400-499)
	ErrCodeIndexNotBuilt = "ERR_401_INDEX_NOT_BUILT"
	ErrCodeEmptyQuestion = "ERR_402_EMPTY_QUESTION"
	ErrCodeNotReady      = "ERR_403_NOT_READY"
	ErrCodeInvalidInput  = "ERR_404_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal  = "ERR_501_INTERNAL"
	ErrCodeCancelled = "ERR_502_CANCELLED"
)

var codeKinds = map[string]Kind{
	ErrCodeConfigInvalid:       KindConfig,
	ErrCodeMissingCredentials:  KindConfig,
	ErrCodeInvalidChunking:     KindConfig,
	ErrCodeEmbedderMismatch:    KindConfig,
	ErrCodeExtractionFailed:    KindExtraction,
	ErrCodeDecryptionFailed:    KindDecryption,
	ErrCodePersistenceFailed:   KindPersistence,
	ErrCodeIndexLocked:         KindPersistence,
	ErrCodeEmbeddingFailed:     KindEmbedding,
	ErrCodeGenerationFailed:    KindGeneration,
	ErrCodeProviderUnavailable: KindGeneration,
	ErrCodeIndexNotBuilt:       KindNotBuilt,
	ErrCodeEmptyQuestion:       KindValidation,
	ErrCodeNotReady:            KindNotReady,
	ErrCodeInvalidInput:        KindValidation,
	ErrCodeInternal:            KindInternal,
	ErrCodeCancelled:           KindCancelled,
}

// kindFromCode returns the failure kind for a code. Unknown codes are internal.
func kindFromCode(code string) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindInternal
}

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 || code[:4] != "ERR_" {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryProvider
	case '4':
		return CategoryState
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityFatal
	case ErrCodeCancelled:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a transient failure.
func isRetryableCode(code string) bool {
	return code == ErrCodeProviderUnavailable
}
