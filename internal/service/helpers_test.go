package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"sendgate/internal/metrics"
	"sendgate/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// generousLimits never deny; tests that exercise throttling pass their own.
func generousLimits() map[models.Channel]models.RateLimitConfig {
	limits := make(map[models.Channel]models.RateLimitConfig)
	for _, ch := range models.AllChannels {
		limits[ch] = models.RateLimitConfig{PerHour: 1000, PerDay: 10000, MinDelay: 0}
	}
	return limits
}

// dispatchFixture wires a full dispatch core over in-memory stores.
type dispatchFixture struct {
	store    *memStore
	limiter  *RateLimiter
	adapters *AdapterRegistry
	reg      *metrics.Registry
	gate     *ComplianceGate
	retries  *RetryPipeline
	router   *DispatchRouter
}

func newDispatchFixture(limits map[models.Channel]models.RateLimitConfig, stalenessAlert int) *dispatchFixture {
	logger := testLogger()
	store := newMemStore()
	limiter := NewRateLimiter(limits)
	adapters := NewAdapterRegistry(logger)
	reg := metrics.NewRegistry()
	gate := NewComplianceGate(store, logger)
	retries := NewRetryPipeline(store, store, store, adapters, gate, limiter, reg, logger)
	router := NewDispatchRouter(store, store, gate, limiter, retries, adapters, reg, stalenessAlert, logger)
	return &dispatchFixture{
		store:    store,
		limiter:  limiter,
		adapters: adapters,
		reg:      reg,
		gate:     gate,
		retries:  retries,
		router:   router,
	}
}

// approvedRecord creates, approves, and persists an approval ready for
// dispatch.
func (f *dispatchFixture) approvedRecord(t *testing.T, channel models.Channel, recipient string) *models.Approval {
	t.Helper()
	a := models.NewApproval("lead-1", channel, models.ActionSend, recipient, "subject", "body")
	require.NoError(t, a.Approve("ops"))
	require.NoError(t, f.store.SaveApproval(context.Background(), a))
	return a
}

// failedRecord creates an approval in failed status together with a due
// failed-send record, as the router would leave them after a delivery error.
func (f *dispatchFixture) failedRecord(t *testing.T, channel models.Channel, recipient string) (*models.Approval, *models.FailedSend) {
	t.Helper()
	a := models.NewApproval("lead-1", channel, models.ActionSend, recipient, "subject", "body")
	require.NoError(t, a.Approve("ops"))
	require.NoError(t, a.MarkFailed("smtp timeout"))
	require.NoError(t, f.store.SaveApproval(context.Background(), a))

	fs := models.NewFailedSend(a, "adapter_send_error", "smtp timeout")
	fs.NextRetryAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, f.store.SaveFailedSend(context.Background(), fs))
	return a, fs
}

func okAdapter(messageID string) *stubAdapter {
	return &stubAdapter{result: &models.SendResult{OK: true, MessageID: messageID}}
}

func errAdapter(err error) *stubAdapter {
	return &stubAdapter{err: err}
}
