package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"sendgate/internal/errors"
	"sendgate/internal/metrics"
	"sendgate/internal/models"
	"sendgate/internal/tracing"
	"sendgate/pkg/circuitbreaker"
)

// RetryPipeline handles transient delivery failures: it records them,
// re-attempts delivery on a wall-clock backoff schedule, and converts
// exhausted failures into dead letters. The sweep is decoupled from the live
// dispatch loop, so retries never block the approval queue.
type RetryPipeline struct {
	approvals ApprovalStore
	failed    FailedSendStore
	events    EventStore
	adapters  *AdapterRegistry
	gate      *ComplianceGate
	limiter   *RateLimiter
	metrics   *metrics.Registry
	logger    *logrus.Logger

	now func() time.Time
}

// NewRetryPipeline wires the pipeline to its collaborators.
func NewRetryPipeline(
	approvals ApprovalStore,
	failed FailedSendStore,
	events EventStore,
	adapters *AdapterRegistry,
	gate *ComplianceGate,
	limiter *RateLimiter,
	reg *metrics.Registry,
	logger *logrus.Logger,
) *RetryPipeline {
	return &RetryPipeline{
		approvals: approvals,
		failed:    failed,
		events:    events,
		adapters:  adapters,
		gate:      gate,
		limiter:   limiter,
		metrics:   reg,
		logger:    logger,
		now:       time.Now,
	}
}

// LogFailedSend records a delivery failure for the approval and flips the
// approval to failed with an error note. The approval itself is persisted by
// the caller at batch granularity.
func (p *RetryPipeline) LogFailedSend(ctx context.Context, approval *models.Approval, sendErr error) (*models.FailedSend, error) {
	errorCode := string(errors.GetCode(sendErr))

	// Log with full context before any state mutation so the audit trail
	// survives a failed persistence write.
	p.logger.WithFields(logrus.Fields{
		"approvalId": approval.ID,
		"channel":    approval.Channel,
		"errorCode":  errorCode,
	}).WithError(sendErr).Warn("Delivery failed, scheduling retry")

	fs := models.NewFailedSend(approval, errorCode, sendErr.Error())
	if err := p.failed.SaveFailedSend(ctx, fs); err != nil {
		return nil, fmt.Errorf("failed to persist failed send: %w", err)
	}

	if approval.Status != models.StatusFailed {
		if err := approval.MarkFailed(sendErr.Error()); err != nil {
			return fs, err
		}
	}

	return fs, nil
}

// RetrySweepResult summarizes one ProcessRetries pass.
type RetrySweepResult struct {
	Due          int `json:"due"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	DeadLettered int `json:"deadLettered"`
	Skipped      int `json:"skipped"`
}

// ProcessRetries re-attempts every due failed send. Successes delete the
// failure record and complete the approval; renewed failures climb the
// backoff ladder until the retry budget is exhausted and the record is
// dead-lettered.
func (p *RetryPipeline) ProcessRetries(ctx context.Context) (*RetrySweepResult, error) {
	ctx, span := tracing.StartSpan(ctx, "retry.sweep")
	defer span.End()

	due, err := p.failed.ListDueFailedSends(ctx, p.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list due retries: %w", err)
	}

	result := &RetrySweepResult{Due: len(due)}
	for _, fs := range due {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}
		p.retryOne(ctx, fs, result)
	}

	if result.Due > 0 {
		p.logger.WithFields(logrus.Fields{
			"due":          result.Due,
			"succeeded":    result.Succeeded,
			"failed":       result.Failed,
			"deadLettered": result.DeadLettered,
			"skipped":      result.Skipped,
		}).Info("Retry sweep completed")
	}

	return result, nil
}

func (p *RetryPipeline) retryOne(ctx context.Context, fs *models.FailedSend, result *RetrySweepResult) {
	log := p.logger.WithFields(logrus.Fields{
		"failedSendId": fs.ID,
		"approvalId":   fs.ApprovalID,
		"channel":      fs.Channel,
		"retryCount":   fs.RetryCount,
	})

	approval, err := p.approvals.GetApproval(ctx, fs.ApprovalID)
	if err != nil {
		log.WithError(err).Error("Failed to load approval for retry")
		result.Skipped++
		return
	}
	if approval == nil {
		log.Warn("Approval missing for failed send, dropping record")
		if err := p.failed.DeleteFailedSend(ctx, fs.ID); err != nil {
			log.WithError(err).Error("Failed to drop orphaned failed send")
		}
		result.Skipped++
		return
	}

	// A recipient suppressed after the original failure stops retrying
	// permanently; retrying into a do-not-contact entry is never correct.
	decision, err := p.gate.CheckApproval(ctx, approval)
	if err != nil {
		log.WithError(err).Error("Compliance check failed during retry")
		result.Skipped++
		return
	}
	if !decision.Allowed {
		log.WithField("reason", decision.Reason).Warn("Recipient suppressed, dead-lettering retry")
		p.MoveToDeadLetter(ctx, fs, approval.LeadID, fmt.Sprintf("recipient suppressed: %s", decision.Reason))
		result.DeadLettered++
		return
	}

	if rateDecision := p.limiter.CanSend(fs.Channel); !rateDecision.Allowed {
		// Not a failure; the record stays due and the next sweep picks it up
		log.WithField("reason", rateDecision.Reason).Debug("Rate limited, postponing retry")
		result.Skipped++
		return
	}

	// Route the attempt through the state machine so the safety invariant
	// holds for retries exactly as for first sends.
	if err := approval.Transition(models.StatusApproved); err != nil {
		log.WithError(err).Error("Approval not retryable, dead-lettering")
		p.MoveToDeadLetter(ctx, fs, approval.LeadID, err.Error())
		result.DeadLettered++
		return
	}
	if !approval.IsSafeToSend() {
		log.Error("Approval unsafe to send after transition")
		result.Skipped++
		return
	}

	sendResult, sendErr := p.adapters.Send(ctx, approval)
	// An open breaker rejects before the adapter runs; only actual platform
	// attempts consume rate budget.
	var openErr *circuitbreaker.OpenError
	if !stderrors.As(sendErr, &openErr) {
		p.limiter.RecordSend(fs.Channel, approval.ID)
	}
	now := p.now().UTC()
	approval.RetryCount++
	approval.LastRetryAt = &now

	if sendErr == nil {
		messageID := ""
		if sendResult != nil {
			messageID = sendResult.MessageID
		}
		if !approval.Channel.SupportsAutoSend() {
			// Same contract as the first attempt: success only opened a
			// compose surface, a human still completes the send
			if err := approval.MarkOpened(); err != nil {
				log.WithError(err).Error("Failed to mark approval opened after retry")
				result.Skipped++
				return
			}
			p.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventOpened, messageID,
				fmt.Sprintf(`{"retryCount":%d}`, fs.RetryCount)))
		} else {
			if err := approval.MarkSent(); err != nil {
				log.WithError(err).Error("Failed to mark approval sent after retry")
				result.Skipped++
				return
			}
			p.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventRetried, messageID,
				fmt.Sprintf(`{"retryCount":%d}`, fs.RetryCount)))
		}
		if err := p.approvals.SaveApproval(ctx, approval); err != nil {
			log.WithError(err).Error("Failed to persist approval after retry success")
		}
		if err := p.failed.DeleteFailedSend(ctx, fs.ID); err != nil {
			log.WithError(err).Error("Failed to delete failed send after success")
		}
		p.metrics.IncrementCounter("retry_succeeded_total", map[string]string{"channel": string(fs.Channel)}, "Retries that delivered")
		result.Succeeded++
		log.Info("Retry delivered")
		return
	}

	// Renewed failure
	if err := approval.MarkFailed(sendErr.Error()); err != nil {
		log.WithError(err).Error("Failed to mark approval failed after retry")
	}
	if err := p.approvals.SaveApproval(ctx, approval); err != nil {
		log.WithError(err).Error("Failed to persist approval after retry failure")
	}

	fs.RecordFailure(string(errors.GetCode(sendErr)), sendErr.Error())
	p.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventSendFailed, "",
		fmt.Sprintf(`{"retryCount":%d,"error":%q}`, fs.RetryCount, sendErr.Error())))

	if fs.Exhausted() {
		p.MoveToDeadLetter(ctx, fs, approval.LeadID, sendErr.Error())
		result.DeadLettered++
		return
	}

	if err := p.failed.SaveFailedSend(ctx, fs); err != nil {
		log.WithError(err).Error("Failed to persist failed send after retry")
	}
	p.metrics.IncrementCounter("retry_failed_total", map[string]string{"channel": string(fs.Channel)}, "Retries that failed again")
	result.Failed++
}

// MoveToDeadLetter converts a failed send into its terminal form. The
// conversion is one-way: the failure record is removed from the active retry
// set and the dead letter is never auto-retried. leadID comes from the
// owning approval, which failed sends do not carry themselves.
func (p *RetryPipeline) MoveToDeadLetter(ctx context.Context, fs *models.FailedSend, leadID, finalError string) {
	dl := fs.ToDeadLetter(finalError)

	p.logger.WithFields(logrus.Fields{
		"failedSendId": fs.ID,
		"approvalId":   fs.ApprovalID,
		"channel":      fs.Channel,
		"retryCount":   fs.RetryCount,
		"finalError":   finalError,
	}).Error("Moving failed send to dead letter")

	if err := p.failed.SaveDeadLetter(ctx, dl); err != nil {
		p.logger.WithError(err).Error("Failed to persist dead letter")
		return
	}
	if err := p.failed.DeleteFailedSend(ctx, fs.ID); err != nil {
		p.logger.WithError(err).Error("Failed to remove failed send after dead-lettering")
	}

	p.appendEvent(ctx, &models.DispatchEvent{
		ID:         uuid.NewString(),
		Timestamp:  p.now().UTC(),
		LeadID:     leadID,
		Channel:    dl.Channel,
		EventType:  models.EventDeadLettered,
		ApprovalID: dl.ApprovalID,
		MetaJSON:   fmt.Sprintf(`{"finalError":%q,"retryCount":%d}`, finalError, dl.RetryCount),
	})
	p.metrics.IncrementCounter("dead_letters_total", map[string]string{"channel": string(fs.Channel)}, "Sends retried to exhaustion")
}

func (p *RetryPipeline) appendEvent(ctx context.Context, event *models.DispatchEvent) {
	if err := p.events.AppendEvent(ctx, event); err != nil {
		p.logger.WithError(err).WithField("eventType", event.EventType).Error("Failed to append dispatch event")
	}
}
