package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sendgate/internal/models"
)

func TestDispatchScheduler_RunsImmediateBatch(t *testing.T) {
	f := newDispatchFixture(generousLimits(), 20)
	adapter := okAdapter("msg")
	f.adapters.Register(models.ChannelEmail, adapter)
	f.approvedRecord(t, models.ChannelEmail, "lead@example.com")

	sched := NewDispatchScheduler(f.router, f.retries, 10, 60, 60, testLogger())

	done := make(chan struct{})
	go func() {
		sched.Start(context.Background())
		close(done)
	}()

	// the first dispatch pass runs before any ticker fires
	require.Eventually(t, func() bool {
		return adapter.callCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	sched.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestDispatchScheduler_StopsOnContextCancel(t *testing.T) {
	f := newDispatchFixture(generousLimits(), 20)
	sched := NewDispatchScheduler(f.router, f.retries, 10, 60, 60, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}

func TestNewDispatchScheduler_Defaults(t *testing.T) {
	f := newDispatchFixture(generousLimits(), 20)
	sched := NewDispatchScheduler(f.router, f.retries, 0, 0, 0, testLogger())

	assert.Equal(t, 25, sched.batchSize)
	assert.Equal(t, 5*time.Minute, sched.interval)
	assert.Equal(t, 10*time.Minute, sched.retryInterval)
}
