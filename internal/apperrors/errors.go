// Package apperrors provides structured gateway errors with kind and HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation        = errors.New("validation error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNoTarget          = errors.New("no job target configured")
	ErrRemoteUnavailable = errors.New("remote cluster unavailable")
	ErrRemoteRejected    = errors.New("remote cluster rejected request")
	ErrTargetGone        = errors.New("job target gone")
	ErrInternal          = errors.New("internal error")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "sql")
	Op       string // Operation that failed (e.g., "flink.submitStatement")
	Stderr   string // Truncated remote response body, when the cluster rejected us
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Unauthorized creates an authentication error.
func Unauthorized(message string) error {
	return &Error{
		Sentinel: ErrUnauthorized,
		Message:  message,
	}
}

// NoTarget creates an error signalling that neither a job id nor a jar path
// is configured. This is a deployment problem, not a transient one.
func NoTarget(message string) error {
	return &Error{
		Sentinel: ErrNoTarget,
		Message:  message,
	}
}

// RemoteUnavailable creates an error for network failures and timeouts
// talking to the Flink REST API.
func RemoteUnavailable(op string, cause error) error {
	return &Error{
		Sentinel: ErrRemoteUnavailable,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// RemoteRejected creates an error for client-error responses from the
// cluster (e.g., malformed SQL). stderr carries the truncated response body.
func RemoteRejected(message, stderr string) error {
	return &Error{
		Sentinel: ErrRemoteRejected,
		Message:  message,
		Stderr:   stderr,
	}
}

// TargetGone creates an error for a resolved job that the cluster no longer
// knows about. Safe to retry after re-resolution.
func TargetGone(jobID string) error {
	return &Error{
		Sentinel: ErrTargetGone,
		Message:  fmt.Sprintf("job %s no longer exists on the cluster", jobID),
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// StderrOf extracts the truncated remote body from an error, if present.
func StderrOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Stderr
	}
	return ""
}
