// Package errors provides standardized error handling for BPMN workflow integration.
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

// Analysis errors. These are the only kinds an analysis caller can observe.
const (
	ErrCodeQuotaExceeded        ErrorCode = "QUOTA_EXCEEDED"
	ErrCodeProviderUnavailable  ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrCodeAnalysisTimeout      ErrorCode = "ANALYSIS_TIMEOUT"
	ErrCodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
	ErrCodeInvalidProfile       ErrorCode = "INVALID_PROFILE"
)

// Job and surface errors.
const (
	ErrCodePayloadInvalid   ErrorCode = "PAYLOAD_INVALID"
	ErrCodeProjectionFailed ErrorCode = "PROFILE_PROJECTION_FAILED"
	ErrCodeRecordNotFound   ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeRecordSaveFailed ErrorCode = "RECORD_SAVE_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
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
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewPayloadInvalidError creates a non-retryable payload validation error.
func NewPayloadInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodePayloadInvalid,
		Message:   "Job payload failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProjectionFailedError creates a non-retryable store profile projection error.
func NewProjectionFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeProjectionFailed,
		Message:   "Store payload could not be projected to a business profile",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError creates a non-retryable lookup error.
func NewRecordNotFoundError(fingerprint string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "No unexpired analysis record for fingerprint",
		Details:   fmt.Sprintf("fingerprint: %s", fingerprint),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordSaveFailedError creates a retryable persistence error.
func NewRecordSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordSaveFailed,
		Message:   "Analysis record could not be saved",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps an unexpected error.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes modelled in the process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeQuotaExceeded:        "QUOTA_EXCEEDED",
	ErrCodeProviderUnavailable:  "PROVIDER_UNAVAILABLE",
	ErrCodeAnalysisTimeout:      "ANALYSIS_TIMEOUT",
	ErrCodeInvalidConfiguration: "INVALID_CONFIGURATION",
	ErrCodeInvalidProfile:       "INVALID_PROFILE",
	ErrCodePayloadInvalid:       "PAYLOAD_INVALID",
	ErrCodeProjectionFailed:     "PROFILE_PROJECTION_FAILED",
	ErrCodeRecordNotFound:       "RECORD_NOT_FOUND",
	ErrCodeRecordSaveFailed:     "RECORD_SAVE_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeProviderUnavailable,
		ErrCodeRecordSaveFailed:
		return 3

	case ErrCodeAnalysisTimeout:
		return 2

	case ErrCodeQuotaExceeded:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "QUOTA") || strings.Contains(codeStr, "PROVIDER"):
		return "PROVIDER"
	case strings.Contains(codeStr, "TIMEOUT"):
		return "TIMEOUT"
	case strings.Contains(codeStr, "RECORD"):
		return "PERSISTENCE"
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "PROJECTION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
