package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeRateLimited, "hourly limit reached")
	assert.Equal(t, "RATE_LIMITED: hourly limit reached", err.Error())

	cause := stderrors.New("connection refused")
	wrapped := Wrap(cause, ErrCodeAdapterSend, "send failed")
	assert.Equal(t, "ADAPTER_SEND: send failed: connection refused", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := stderrors.New("root cause")
	wrapped := Wrap(cause, ErrCodeDatabaseQuery, "query failed")

	require.ErrorIs(t, wrapped, cause)
	assert.Equal(t, cause, stderrors.Unwrap(wrapped))
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeUnknownChannel, "unknown channel").
		WithContext("channel", "sms").
		WithContext("leadId", "lead-1")

	assert.Equal(t, "sms", err.Context["channel"])
	assert.Equal(t, "lead-1", err.Context["leadId"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(stderrors.New("locked"), ErrCodeDatabaseQuery, "busy")))
	assert.False(t, IsRetryable(New(ErrCodeInvalidTransition, "illegal")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeNotFound, GetCode(New(ErrCodeNotFound, "gone")))
	assert.Equal(t, ErrCodeInternalError, GetCode(stderrors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	err := New(ErrCodeComplianceBlocked, "recipient suppressed").
		WithUserMessage("This contact has opted out.")
	assert.Equal(t, "This contact has opted out.", GetUserMessage(err))
}
