// internal/common/errors/analysis.go
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// AnalysisError is the closed set of failures an analysis run can surface.
// Per-query and per-candidate failures never reach the caller as an AnalysisError.
type AnalysisError struct {
	Kind      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AnalysisError[%s]: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("AnalysisError[%s]: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// ToStandardError bridges an analysis failure into the job error path.
func (e *AnalysisError) ToStandardError() *StandardError {
	details := ""
	if e.Cause != nil {
		details = e.Cause.Error()
	}
	return &StandardError{
		Code:      e.Kind,
		Message:   e.Message,
		Details:   details,
		Retryable: e.Retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewQuotaExceededError(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:      ErrCodeQuotaExceeded,
		Message:   "Provider quota exhausted and no cached candidates available",
		Retryable: true,
		Cause:     cause,
	}
}

func NewProviderUnavailableError(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:      ErrCodeProviderUnavailable,
		Message:   "Search provider unreachable",
		Retryable: true,
		Cause:     cause,
	}
}

func NewAnalysisTimeoutError(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:      ErrCodeAnalysisTimeout,
		Message:   "Analysis deadline reached before any candidate completed",
		Retryable: true,
		Cause:     cause,
	}
}

func NewInvalidConfigurationError(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:      ErrCodeInvalidConfiguration,
		Message:   "Invalid engine configuration",
		Retryable: false,
		Cause:     cause,
	}
}

func NewInvalidProfileError(cause error) *AnalysisError {
	return &AnalysisError{
		Kind:      ErrCodeInvalidProfile,
		Message:   "Business profile is missing required fields",
		Retryable: false,
		Cause:     cause,
	}
}

// AsAnalysisError unwraps err into an *AnalysisError when it carries one.
func AsAnalysisError(err error) (*AnalysisError, bool) {
	var ae *AnalysisError
	if stderrors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is an AnalysisError of the given kind.
func IsKind(err error, kind ErrorCode) bool {
	ae, ok := AsAnalysisError(err)
	return ok && ae.Kind == kind
}
