package service

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sendgate/internal/errors"
	"sendgate/internal/models"
	"sendgate/pkg/circuitbreaker"
)

func TestAdapterRegistry_RoutesByChannel(t *testing.T) {
	reg := NewAdapterRegistry(testLogger())
	a := models.NewApproval("lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")

	adapter := &mockAdapter{}
	adapter.On("Send", mock.Anything, a).Return(&models.SendResult{OK: true, MessageID: "m-1"}, nil)
	reg.Register(models.ChannelEmail, adapter)

	require.True(t, reg.Has(models.ChannelEmail))
	assert.False(t, reg.Has(models.ChannelTelegram))

	result, err := reg.Send(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "m-1", result.MessageID)
	adapter.AssertExpectations(t)
}

func TestAdapterRegistry_UnregisteredChannel(t *testing.T) {
	reg := NewAdapterRegistry(testLogger())
	a := models.NewApproval("lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")

	_, err := reg.Send(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAdapterUnavailable, errors.GetCode(err))
}

func TestAdapterRegistry_PlatformRejectionBecomesError(t *testing.T) {
	reg := NewAdapterRegistry(testLogger())
	reg.Register(models.ChannelWhatsApp, &stubAdapter{
		result: &models.SendResult{OK: false, Error: "blocked by platform"},
	})
	a := models.NewApproval("lead-1", models.ChannelWhatsApp, models.ActionSend, "+15551234567", "", "body")

	_, err := reg.Send(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAdapterSend, errors.GetCode(err))
	assert.Contains(t, err.Error(), "blocked by platform")
}

func TestAdapterRegistry_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	reg := NewAdapterRegistry(testLogger())
	failing := errAdapter(stderrors.New("connection refused"))
	reg.Register(models.ChannelEmail, failing)
	a := models.NewApproval("lead-1", models.ChannelEmail, models.ActionSend, "a@b.com", "", "body")

	// drive the breaker to open, then confirm calls are rejected without
	// touching the adapter
	var openErr *circuitbreaker.OpenError
	for i := 0; i < 20; i++ {
		_, err := reg.Send(context.Background(), a)
		require.Error(t, err)
		if stderrors.As(err, &openErr) {
			break
		}
	}
	require.NotNil(t, openErr, "expected the breaker to open")

	calls := failing.callCount()
	_, err := reg.Send(context.Background(), a)
	require.Error(t, err)
	assert.Equal(t, calls, failing.callCount(), "open breaker must not invoke the adapter")
}

func TestSendAdapterFunc_SatisfiesSendAdapter(t *testing.T) {
	reg := NewAdapterRegistry(testLogger())
	var got *models.Approval
	reg.Register(models.ChannelTelegram, SendAdapterFunc(func(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
		got = approval
		return &models.SendResult{OK: true, MessageID: "tg-42"}, nil
	}))
	a := models.NewApproval("lead-1", models.ChannelTelegram, models.ActionSend, "@lead", "", "body")

	result, err := reg.Send(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "tg-42", result.MessageID)
	assert.Same(t, a, got)
}
