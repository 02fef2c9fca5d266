package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New("test", maxFailures, timeout, logger)
}

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 10; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
		require.NoError(t, err)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	// open breaker rejects without calling fn
	called := false
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(15 * time.Millisecond)

	// first probe goes through
	err = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.GetState())
}

func TestCircuitBreaker_ClosesAfterRecovery(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
		require.NoError(t, err, "probe %d", i+1)
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("still down") })
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestCircuitBreaker_Stats(t *testing.T) {
	cb := newTestBreaker(5, time.Minute)

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return errors.New("boom") })

	stats := cb.GetStats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, uint32(2), stats.Requests)
	assert.Equal(t, uint32(1), stats.Successes)
	assert.Equal(t, uint32(1), stats.Failures)
	assert.False(t, stats.LastFailureTime.IsZero())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "HALF_OPEN", StateHalfOpen.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
