package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Registry errors
	ErrDuplicateID     = errors.New("artifact id already registered")
	ErrNotFound        = errors.New("artifact not found")
	ErrCorruptMetadata = errors.New("corrupt artifact metadata")
	ErrUnknownArtifact = errors.New("unknown artifact")

	// Fetcher errors
	ErrIntegrityVerificationFailed = errors.New("integrity verification failed")
	ErrTransferAborted             = errors.New("transfer aborted")

	// Validation errors
	ErrInvalidKind      = errors.New("invalid artifact kind")
	ErrInvalidCategory  = errors.New("invalid problem category")
	ErrInvalidDataset   = errors.New("invalid dataset name")
	ErrInvalidVersion   = errors.New("invalid version label")
	ErrInvalidThreshold = errors.New("invalid threshold: must be non-negative")
	ErrEmptyBlob        = errors.New("artifact blob is empty")
	ErrNoFeatures       = errors.New("no features in distribution summary")

	// Storage errors
	ErrStorageNotFound         = errors.New("storage backend not found")
	ErrStorageConnectionFailed = errors.New("storage connection failed")
	ErrStorageWriteFailed      = errors.New("storage write failed")
	ErrStorageReadFailed       = errors.New("storage read failed")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing configuration")

	// Asset errors
	ErrAssetNotConfigured = errors.New("asset not configured")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeRegistry      ErrorType = "registry"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeIntegrity     ErrorType = "integrity"
	ErrorTypeTransfer      ErrorType = "transfer"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Retryable  bool                   `json:"retryable"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Retryable:  false,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context. The cause is
// preserved so errors.Is still matches the sentinel kinds above.
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		Retryable:  isRetryable(err),
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewRegistryError creates a registry error
func NewRegistryError(code, message string) *AppError {
	return NewAppError(ErrorTypeRegistry, code, message)
}

// NewTransferError creates a transfer error. Transfer failures are retryable
// up to the fetcher's bounded retry budget.
func NewTransferError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeTransfer,
		Code:       code,
		Message:    message,
		Retryable:  true,
		HTTPStatus: 503,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternalError,
		Message:    message,
		Retryable:  false,
		HTTPStatus: 500,
	}
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeRegistry:
		return 404
	case ErrorTypeStorage:
		return 404
	case ErrorTypeIntegrity:
		return 422
	case ErrorTypeTransfer, ErrorTypeConfiguration:
		return 503
	case ErrorTypeInternal:
		return 500
	default:
		return 500
	}
}

// isRetryable determines if an error is retryable
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, ErrTransferAborted):
		return true
	case errors.Is(err, ErrStorageConnectionFailed):
		return true
	default:
		return false
	}
}

// HTTPStatusFor maps any error to an HTTP status, honoring the sentinel
// taxonomy for callers that only have a wrapped error.
func HTTPStatusFor(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownArtifact):
		return 404
	case errors.Is(err, ErrDuplicateID):
		return 409
	case errors.Is(err, ErrCorruptMetadata), errors.Is(err, ErrIntegrityVerificationFailed):
		return 422
	case errors.Is(err, ErrTransferAborted):
		return 502
	default:
		return 500
	}
}

// Error codes for different error scenarios
const (
	// Validation error codes
	CodeInvalidInput  = "INVALID_INPUT"
	CodeMissingField  = "MISSING_FIELD"
	CodeInvalidFormat = "INVALID_FORMAT"

	// Registry error codes
	CodeDuplicateID     = "DUPLICATE_ID"
	CodeNotFound        = "NOT_FOUND"
	CodeCorruptMetadata = "CORRUPT_METADATA"
	CodeUnknownArtifact = "UNKNOWN_ARTIFACT"

	// Storage error codes
	CodeStorageError     = "STORAGE_ERROR"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeReadFailed       = "READ_FAILED"

	// Fetch error codes
	CodeIntegrityFailed = "INTEGRITY_VERIFICATION_FAILED"
	CodeTransferAborted = "TRANSFER_ABORTED"
	CodeSizeMismatch    = "SIZE_MISMATCH"
	CodeAssetUnknown    = "ASSET_NOT_CONFIGURED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
