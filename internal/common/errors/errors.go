// Package errors provides standardized error handling for the review workflow.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	ErrCodeUnsupportedSection ErrorCode = "UNSUPPORTED_SECTION"
	ErrCodeApplyFailed        ErrorCode = "APPLY_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_FAILED"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is reports whether err carries the given error code.
func Is(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// CodeOf returns the error code of err, or ErrCodeInternal for plain errors.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable malformed-request error.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid request input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError creates a non-retryable error for an action that is
// not valid in the submission's current status.
func NewInvalidStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   "Action not allowed in current submission state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidPayloadError creates a non-retryable proposed-data shape error.
func NewInvalidPayloadError(section, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidPayload,
		Message:   fmt.Sprintf("Proposed data does not match the %s contract", section),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedSectionError creates a non-retryable unknown-section error.
func NewUnsupportedSectionError(section string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedSection,
		Message:   "Unsupported submission section",
		Details:   fmt.Sprintf("section: %s", section),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplyFailedError creates a retryable section-mutation error. The
// enclosing transaction rolls back and the submission remains pending, so
// the caller may retry.
func NewApplyFailedError(section string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplyFailed,
		Message:   fmt.Sprintf("Applying the %s section failed", section),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationFailedError creates an advisory error. Callers log it and
// never propagate it to the operation that triggered the notification.
func NewNotificationFailedError(kind string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", kind, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError creates a non-retryable role-gate error.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Actor role does not permit this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
