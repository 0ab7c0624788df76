// Package errors provides the standardized error taxonomy for the quoting engine.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Turn-local, recoverable via clarification. Surfaced to callers as a
	// Clarification result rather than an error, so it has no constructor.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Session-level, routes to escalation.
	ErrCodeUnsupportedJurisdiction ErrorCode = "UNSUPPORTED_JURISDICTION"

	// Transient, external collaborators.
	ErrCodeNluTimeout       ErrorCode = "NLU_TIMEOUT"
	ErrCodeNluFailed        ErrorCode = "NLU_FAILED"
	ErrCodeRetrievalTimeout ErrorCode = "RETRIEVAL_TIMEOUT"
	ErrCodeRetrievalFailed  ErrorCode = "RETRIEVAL_FAILED"

	// Integrity: the quote cannot be trusted.
	ErrCodeConfigError ErrorCode = "CONFIG_ERROR"

	// Session lifecycle.
	ErrCodeSessionClosed     ErrorCode = "SESSION_CLOSED"
	ErrCodeSessionStoreError ErrorCode = "SESSION_STORE_ERROR"

	// Persistence of issued quotes.
	ErrCodeAuditWriteFailed ErrorCode = "AUDIT_WRITE_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewUnsupportedJurisdictionError creates a non-retryable rating error.
// Pricing never degrades gracefully for an unknown jurisdiction.
func NewUnsupportedJurisdictionError(jurisdiction string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedJurisdiction,
		Message:   "Jurisdiction has no configured rate entry",
		Details:   fmt.Sprintf("jurisdiction: %s", jurisdiction),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNluTimeoutError creates a retryable NLU timeout error.
func NewNluTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeNluTimeout,
		Message:   "NLU classification timeout",
		Details:   "classify call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNluFailedError creates a retryable NLU error.
func NewNluFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNluFailed,
		Message:   "NLU classification API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalTimeoutError creates a retryable retrieval timeout error.
func NewRetrievalTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalTimeout,
		Message:   "Knowledge retrieval timeout",
		Details:   "retrieve call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRetrievalFailedError creates a retryable retrieval error.
func NewRetrievalFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRetrievalFailed,
		Message:   "Knowledge retrieval backend error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigError creates a non-retryable rate-table integrity error.
// A missing table entry must never produce a fabricated price.
func NewConfigError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigError,
		Message:   "Rate table is missing an expected entry",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionClosedError creates a non-retryable terminal-session error.
func NewSessionClosedError(sessionID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionClosed,
		Message:   "Session is in a terminal state",
		Details:   fmt.Sprintf("sessionId: %s, status: %s", sessionID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreError creates a retryable session persistence error.
func NewSessionStoreError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreError,
		Message:   "Session store operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuditWriteFailedError creates a retryable audit persistence error.
func NewAuditWriteFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuditWriteFailed,
		Message:   "Quote audit write failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Retry Policy
// ==========================

// GetRetryCount returns the bounded retry count per error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeNluFailed,
		ErrCodeRetrievalFailed,
		ErrCodeSessionStoreError,
		ErrCodeAuditWriteFailed:
		return 3

	case ErrCodeNluTimeout,
		ErrCodeRetrievalTimeout:
		return 2

	default:
		return 0 // Business and integrity errors: no retry
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "JURISDICTION") || strings.Contains(codeStr, "CONFIG"):
		return "RATING"
	case strings.Contains(codeStr, "NLU") || strings.Contains(codeStr, "RETRIEVAL"):
		return "COLLABORATOR"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "AUDIT"):
		return "AUDIT"
	default:
		return "OTHER"
	}
}

// CodeOf extracts the ErrorCode from an error, or empty when it is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr.Code
	}
	return ""
}
