package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Callers match on these instead of hardcoded strings.
const (
	// Upstream: the queue service could not be reached, rejected the
	// credentials, or does not know the queue. Never retried by the core.
	ErrCodeQueueUnavailable ErrorCode = "upstream_queue_unavailable"

	// Upstream: STS could not confirm the caller identity.
	ErrCodeIdentityUnavailable ErrorCode = "upstream_identity_unavailable"

	// Degraded: the drain stopped before reaching its target because receive
	// calls stopped making progress or a ceiling was hit. The accumulated
	// messages are still valid output.
	ErrCodeDrainStalled ErrorCode = "drain_stalled"

	// Recoverable: a message body is not valid JSON. The record keeps the
	// raw body.
	ErrCodeBodyMalformed ErrorCode = "body_malformed"

	// Configuration
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	// Output
	ErrCodeOutputWrite ErrorCode = "output_write_failed"

	// Internal
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// Process exit statuses returned by the CLI.
const (
	ExitOK          = 0
	ExitUnexpected  = 1
	ExitConfig      = 2
	ExitUnavailable = 3
	ExitOutput      = 4
)

// ExitCode maps an ErrorCode to the process exit status the CLI should use.
// Degraded and recoverable codes map to ExitOK because the run still
// produced output.
func (c ErrorCode) ExitCode() int {
	s := string(c)
	switch {
	case c == ErrCodeDrainStalled, c == ErrCodeBodyMalformed:
		return ExitOK
	case strings.HasPrefix(s, "upstream_"):
		return ExitUnavailable
	case strings.HasPrefix(s, "config_"):
		return ExitConfig
	case strings.HasPrefix(s, "output_"):
		return ExitOutput
	default:
		return ExitUnexpected
	}
}

// IsDegraded reports whether the code describes a run that still produced a
// usable result.
func (c ErrorCode) IsDegraded() bool {
	return c == ErrCodeDrainStalled || c == ErrCodeBodyMalformed
}

// AppError is the standard application error type. Components return
// AppError so the CLI can map failures to exit statuses with errors.As.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit status for this error's code.
func (e *AppError) ExitCode() int {
	return e.Code.ExitCode()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf extracts the ErrorCode from the first AppError in err's chain.
// Errors that carry no AppError report ErrCodeInternalUnexpected; nil
// reports the empty code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}

// ExitCodeOf returns the exit status for err (ExitOK for nil).
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	return CodeOf(err).ExitCode()
}
