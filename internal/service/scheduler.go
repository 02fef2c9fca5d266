package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sendgate/internal/constants"
)

// DispatchScheduler drives the router and the retry pipeline on independent
// tickers so delivery retries never block the live approval queue.
type DispatchScheduler struct {
	router        *DispatchRouter
	retries       *RetryPipeline
	batchSize     int
	interval      time.Duration
	retryInterval time.Duration
	logger        *logrus.Logger
	stopCh        chan struct{}
}

// NewDispatchScheduler creates the scheduler. Non-positive intervals fall
// back to the defaults.
func NewDispatchScheduler(router *DispatchRouter, retries *RetryPipeline, batchSize, intervalMin, retryIntervalMin int, logger *logrus.Logger) *DispatchScheduler {
	if intervalMin <= 0 {
		intervalMin = constants.DefaultDispatchIntervalMin
	}
	if retryIntervalMin <= 0 {
		retryIntervalMin = constants.DefaultRetrySweepIntervalMin
	}
	if batchSize <= 0 {
		batchSize = constants.DefaultDispatchBatchSize
	}
	return &DispatchScheduler{
		router:        router,
		retries:       retries,
		batchSize:     batchSize,
		interval:      time.Duration(intervalMin) * time.Minute,
		retryInterval: time.Duration(retryIntervalMin) * time.Minute,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start runs both loops until the context is cancelled or Stop is called.
// An immediate first pass runs before the tickers take over.
func (s *DispatchScheduler) Start(ctx context.Context) {
	dispatchTicker := time.NewTicker(s.interval)
	defer dispatchTicker.Stop()
	retryTicker := time.NewTicker(s.retryInterval)
	defer retryTicker.Stop()

	s.logger.WithFields(logrus.Fields{
		"dispatchInterval": s.interval,
		"retryInterval":    s.retryInterval,
		"batchSize":        s.batchSize,
	}).Info("Starting dispatch scheduler")

	s.runDispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-dispatchTicker.C:
			s.runDispatch(ctx)
		case <-retryTicker.C:
			s.runRetrySweep(ctx)
		}
	}
}

// Stop signals the scheduler to exit.
func (s *DispatchScheduler) Stop() {
	close(s.stopCh)
}

func (s *DispatchScheduler) runDispatch(ctx context.Context) {
	if _, err := s.router.ProcessApproved(ctx, s.batchSize); err != nil {
		s.logger.WithError(err).Error("Dispatch batch failed")
	}
}

func (s *DispatchScheduler) runRetrySweep(ctx context.Context) {
	if _, err := s.retries.ProcessRetries(ctx); err != nil {
		s.logger.WithError(err).Error("Retry sweep failed")
	}
}
