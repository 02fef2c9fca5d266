package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"sendgate/internal/metrics"
	"sendgate/internal/models"
	"sendgate/internal/tracing"
	"sendgate/pkg/circuitbreaker"
)

// DispatchRouter is the orchestration loop: it pulls approved records,
// re-checks compliance and rate limits, invokes the channel adapter, and
// updates state based on the outcome. An internal mutex serializes batch
// runs; the whole loop is single-writer against the backing store.
type DispatchRouter struct {
	mu sync.Mutex

	approvals ApprovalStore
	events    EventStore
	gate      *ComplianceGate
	limiter   *RateLimiter
	retries   *RetryPipeline
	adapters  *AdapterRegistry
	metrics   *metrics.Registry
	logger    *logrus.Logger

	// consecutive rate-limit skips per approval; an approval stuck past
	// stalenessSkipAlert surfaces a staleness warning instead of being
	// silently skipped forever
	skipCounts         map[string]int
	stalenessSkipAlert int

	now func() time.Time
}

// NewDispatchRouter wires the router to its collaborators.
func NewDispatchRouter(
	approvals ApprovalStore,
	events EventStore,
	gate *ComplianceGate,
	limiter *RateLimiter,
	retries *RetryPipeline,
	adapters *AdapterRegistry,
	reg *metrics.Registry,
	stalenessSkipAlert int,
	logger *logrus.Logger,
) *DispatchRouter {
	if stalenessSkipAlert <= 0 {
		stalenessSkipAlert = 1
	}
	return &DispatchRouter{
		approvals:          approvals,
		events:             events,
		gate:               gate,
		limiter:            limiter,
		retries:            retries,
		adapters:           adapters,
		metrics:            reg,
		logger:             logger,
		skipCounts:         make(map[string]int),
		stalenessSkipAlert: stalenessSkipAlert,
		now:                time.Now,
	}
}

// DispatchResult summarizes one ProcessApproved batch.
type DispatchResult struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Opened    int `json:"opened"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

type dispatchOutcome int

const (
	outcomeSkipped dispatchOutcome = iota
	outcomeSent
	outcomeOpened
	outcomeFailed
)

// ProcessApproved runs one dispatch batch: up to maxBatch approved records
// are processed in stored order. Skips leave records approved for the next
// tick; all state changes are persisted together at the end of the batch.
func (r *DispatchRouter) ProcessApproved(ctx context.Context, maxBatch int) (*DispatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "dispatch.batch",
		attribute.Int("dispatch.max_batch", maxBatch))
	defer span.End()

	start := r.now()

	all, err := r.approvals.ListApprovals(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, fmt.Errorf("failed to load approvals: %w", err)
	}

	result := &DispatchResult{}
	var dirty []*models.Approval

	for _, approval := range all {
		if approval.Status != models.StatusApproved {
			continue
		}
		if maxBatch > 0 && result.Processed >= maxBatch {
			break
		}
		result.Processed++

		switch r.dispatchOne(ctx, approval) {
		case outcomeSent:
			result.Sent++
			dirty = append(dirty, approval)
		case outcomeOpened:
			result.Opened++
			dirty = append(dirty, approval)
		case outcomeFailed:
			result.Failed++
			dirty = append(dirty, approval)
		case outcomeSkipped:
			result.Skipped++
		}
	}

	if len(dirty) > 0 {
		if err := r.approvals.SaveApprovals(ctx, dirty); err != nil {
			tracing.RecordError(ctx, err)
			return result, fmt.Errorf("failed to persist dispatch batch: %w", err)
		}
	}

	// Skip counters only matter while a record is still approved; anything
	// that left that state by any route, including out-of-band rejection,
	// is forgotten here so the map cannot grow without bound
	stillApproved := make(map[string]struct{}, len(all))
	for _, approval := range all {
		if approval.Status == models.StatusApproved {
			stillApproved[approval.ID] = struct{}{}
		}
	}
	for id := range r.skipCounts {
		if _, ok := stillApproved[id]; !ok {
			delete(r.skipCounts, id)
		}
	}

	tracing.AddSpanAttributes(ctx,
		attribute.Int("dispatch.processed", result.Processed),
		attribute.Int("dispatch.sent", result.Sent),
		attribute.Int("dispatch.skipped", result.Skipped))
	r.metrics.RecordTimer("dispatch_batch_duration", r.now().Sub(start), nil)
	r.logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"sent":      result.Sent,
		"opened":    result.Opened,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	}).Info("Dispatch batch completed")

	return result, nil
}

// dispatchOne processes a single approval. Panics and unexpected errors are
// contained here: they fail the one record and never abort the batch.
func (r *DispatchRouter) dispatchOne(ctx context.Context, approval *models.Approval) (outcome dispatchOutcome) {
	log := r.logger.WithFields(logrus.Fields{
		"approvalId": approval.ID,
		"channel":    approval.Channel,
		"leadId":     approval.LeadID,
	})

	defer func() {
		if rec := recover(); rec != nil {
			panicErr := fmt.Errorf("panic during dispatch: %v", rec)
			log.WithError(panicErr).Error("Dispatch panicked for approval")
			if approval.CanTransition(models.StatusFailed) {
				_ = approval.MarkFailed(panicErr.Error())
			}
			r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventSendFailed, "",
				fmt.Sprintf(`{"error":%q}`, panicErr.Error())))
			outcome = outcomeFailed
		}
	}()

	ctx, span := tracing.StartSpan(ctx, "dispatch.send",
		attribute.String("dispatch.approval_id", approval.ID),
		attribute.String("dispatch.channel", string(approval.Channel)))
	defer span.End()

	// Defense in depth: the loop already filters on status, but the safety
	// invariant is re-verified immediately before any adapter involvement.
	if !approval.IsSafeToSend() {
		log.WithField("status", approval.Status).Error("Refusing to dispatch non-approved record")
		return outcomeSkipped
	}

	decision, err := r.gate.CheckApproval(ctx, approval)
	if err != nil {
		log.WithError(err).Error("Compliance check failed")
		tracing.RecordError(ctx, err)
		return outcomeSkipped
	}
	if !decision.Allowed {
		// Blocked recipients are an out-of-band policy issue, not a
		// transient error: no status change, no retry
		log.WithField("reason", decision.Reason).Warn("Recipient blocked by compliance gate")
		r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventComplianceBlocked, "",
			fmt.Sprintf(`{"reason":%q}`, decision.Reason)))
		r.metrics.IncrementCounter("dispatch_skipped_total",
			map[string]string{"channel": string(approval.Channel), "reason": "compliance"},
			"Approvals skipped by policy")
		return outcomeSkipped
	}

	if rateDecision := r.limiter.CanSend(approval.Channel); !rateDecision.Allowed {
		r.skipCounts[approval.ID]++
		skips := r.skipCounts[approval.ID]
		log.WithFields(logrus.Fields{
			"reason":           rateDecision.Reason,
			"consecutiveSkips": skips,
		}).Info("Rate limited, leaving approval for next tick")
		r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventRateLimited, "",
			fmt.Sprintf(`{"reason":%q,"consecutiveSkips":%d}`, rateDecision.Reason, skips)))
		r.metrics.IncrementCounter("dispatch_skipped_total",
			map[string]string{"channel": string(approval.Channel), "reason": "rate_limit"},
			"Approvals skipped by policy")

		if skips >= r.stalenessSkipAlert {
			log.WithField("consecutiveSkips", skips).Warn("Approval is stale: repeatedly rate limited")
			r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventStale, "",
				fmt.Sprintf(`{"consecutiveSkips":%d}`, skips)))
		}
		return outcomeSkipped
	}
	delete(r.skipCounts, approval.ID)

	sendResult, sendErr := r.adapters.Send(ctx, approval)
	// Exactly one window entry per actual adapter invocation; an open
	// breaker rejected the call before the adapter ran, so nothing reached
	// the platform
	var openErr *circuitbreaker.OpenError
	if !errors.As(sendErr, &openErr) {
		r.limiter.RecordSend(approval.Channel, approval.ID)
	}

	if sendErr != nil {
		tracing.RecordError(ctx, sendErr)
		if _, err := r.retries.LogFailedSend(ctx, approval, sendErr); err != nil {
			log.WithError(err).Error("Failed to hand off to retry pipeline")
			if approval.CanTransition(models.StatusFailed) {
				_ = approval.MarkFailed(sendErr.Error())
			}
		}
		r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventSendFailed, "",
			fmt.Sprintf(`{"error":%q}`, sendErr.Error())))
		r.metrics.IncrementCounter("dispatch_failed_total",
			map[string]string{"channel": string(approval.Channel)}, "Dispatch attempts that failed")
		return outcomeFailed
	}

	messageID := ""
	if sendResult != nil {
		messageID = sendResult.MessageID
	}

	if !approval.Channel.SupportsAutoSend() {
		// Success only means a compose surface was opened; a human still
		// has to click send
		if err := approval.MarkOpened(); err != nil {
			log.WithError(err).Error("Failed to mark approval opened")
			return outcomeSkipped
		}
		log.Info("Compose surface opened, awaiting manual completion")
		r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventOpened, messageID, ""))
		r.metrics.IncrementCounter("dispatch_opened_total",
			map[string]string{"channel": string(approval.Channel)}, "Manual-completion channels opened")
		return outcomeOpened
	}

	if err := approval.MarkSent(); err != nil {
		log.WithError(err).Error("Failed to mark approval sent")
		return outcomeSkipped
	}
	log.WithField("messageId", messageID).Info("Message dispatched")
	r.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventSent, messageID, ""))
	r.metrics.IncrementCounter("dispatch_sent_total",
		map[string]string{"channel": string(approval.Channel)}, "Messages delivered")
	return outcomeSent
}

func (r *DispatchRouter) appendEvent(ctx context.Context, event *models.DispatchEvent) {
	if err := r.events.AppendEvent(ctx, event); err != nil {
		r.logger.WithError(err).WithField("eventType", event.EventType).Error("Failed to append dispatch event")
	}
}
