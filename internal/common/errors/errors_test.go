// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{
			name:        "retryable provider failure keeps retry budget",
			err:         NewProviderUnavailableError(fmt.Errorf("dial tcp: refused")).ToStandardError(),
			wantCode:    "PROVIDER_UNAVAILABLE",
			wantRetries: 3,
		},
		{
			name:        "invalid profile is thrown without retries",
			err:         NewInvalidProfileError(fmt.Errorf("primaryCategory is required")).ToStandardError(),
			wantCode:    "INVALID_PROFILE",
			wantRetries: 0,
		},
		{
			name:        "quota exceeded retries once",
			err:         NewQuotaExceededError(nil).ToStandardError(),
			wantCode:    "QUOTA_EXCEEDED",
			wantRetries: 1,
		},
		{
			name:        "unknown code falls back to its own name",
			err:         &StandardError{Code: "SOMETHING_ELSE", Message: "x", Retryable: true},
			wantCode:    "SOMETHING_ELSE",
			wantRetries: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("wrapped analysis error", func(t *testing.T) {
		err := fmt.Errorf("run: %w", NewAnalysisTimeoutError(stderrors.New("deadline")))
		std := Normalize(err)
		assert.Equal(t, ErrCodeAnalysisTimeout, std.Code)
		assert.True(t, std.Retryable)
		assert.Equal(t, "deadline", std.Details)
	})

	t.Run("standard error passes through", func(t *testing.T) {
		in := NewPayloadInvalidError("profile: required")
		assert.Same(t, in, Normalize(in))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		std := Normalize(stderrors.New("boom"))
		assert.Equal(t, ErrCodeInternal, std.Code)
		assert.False(t, std.Retryable)
	})
}

func TestAnalysisError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := fmt.Errorf("discover: %w", NewProviderUnavailableError(cause))

	ae, ok := AsAnalysisError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeProviderUnavailable, ae.Kind)
	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, IsKind(err, ErrCodeProviderUnavailable))
	assert.False(t, IsKind(err, ErrCodeAnalysisTimeout))
	assert.False(t, IsKind(cause, ErrCodeProviderUnavailable))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "PROVIDER", GetErrorCategory(ErrCodeQuotaExceeded))
	assert.Equal(t, "TIMEOUT", GetErrorCategory(ErrCodeAnalysisTimeout))
	assert.Equal(t, "PERSISTENCE", GetErrorCategory(ErrCodeRecordSaveFailed))
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeInvalidConfiguration))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidProfile))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
