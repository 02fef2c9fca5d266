package service

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sendgate/internal/constants"
	"sendgate/internal/errors"
	"sendgate/internal/models"
	"sendgate/pkg/circuitbreaker"
)

// SendAdapter is the outbound boundary for one channel. Adapters are
// stateless functions of (recipient, message) -> outcome; they never see the
// dispatch loop. A transport-level failure is returned as err; a platform
// rejection comes back as a result with OK=false.
type SendAdapter interface {
	Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error)
}

// SendAdapterFunc adapts a plain function to the SendAdapter interface.
type SendAdapterFunc func(ctx context.Context, approval *models.Approval) (*models.SendResult, error)

func (f SendAdapterFunc) Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
	return f(ctx, approval)
}

// AdapterRegistry maps channels to their send adapters and wraps every call
// in a per-channel circuit breaker and timeout.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[models.Channel]SendAdapter
	breakers map[models.Channel]*circuitbreaker.CircuitBreaker

	timeout time.Duration
	logger  *logrus.Logger
}

// NewAdapterRegistry creates an empty registry.
func NewAdapterRegistry(logger *logrus.Logger) *AdapterRegistry {
	return &AdapterRegistry{
		adapters: make(map[models.Channel]SendAdapter),
		breakers: make(map[models.Channel]*circuitbreaker.CircuitBreaker),
		timeout:  constants.DefaultAdapterTimeoutSec * time.Second,
		logger:   logger,
	}
}

// Register installs the adapter for a channel, replacing any previous one.
func (r *AdapterRegistry) Register(channel models.Channel, adapter SendAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[channel] = adapter
	if _, ok := r.breakers[channel]; !ok {
		r.breakers[channel] = circuitbreaker.New(
			string(channel),
			constants.CBMaxFailures,
			constants.CBTimeoutSec*time.Second,
			r.logger,
		)
	}
}

// Has reports whether an adapter is registered for the channel.
func (r *AdapterRegistry) Has(channel models.Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[channel]
	return ok
}

// Send invokes the channel's adapter under its circuit breaker with a
// bounded timeout. Adapter timeouts surface as ordinary send errors.
func (r *AdapterRegistry) Send(ctx context.Context, approval *models.Approval) (*models.SendResult, error) {
	r.mu.RLock()
	adapter, ok := r.adapters[approval.Channel]
	breaker := r.breakers[approval.Channel]
	r.mu.RUnlock()

	if !ok {
		return nil, errors.New(errors.ErrCodeAdapterUnavailable, "no adapter registered").
			WithContext("channel", string(approval.Channel))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var result *models.SendResult
	err := breaker.Execute(callCtx, func(ctx context.Context) error {
		var sendErr error
		result, sendErr = adapter.Send(ctx, approval)
		if sendErr != nil {
			return sendErr
		}
		if result != nil && !result.OK {
			return errors.New(errors.ErrCodeAdapterSend, result.Error).
				WithContext("channel", string(approval.Channel))
		}
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}
