package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sendgate/internal/errors"
	"sendgate/internal/models"
)

// ApprovalService exposes the human-facing lifecycle operations: drafting a
// message for review and approving or rejecting it. Sends are exclusively
// the router's business.
type ApprovalService struct {
	store  ApprovalStore
	events EventStore
	logger *logrus.Logger
}

// NewApprovalService creates the service over the given store.
func NewApprovalService(store ApprovalStore, events EventStore, logger *logrus.Logger) *ApprovalService {
	return &ApprovalService{store: store, events: events, logger: logger}
}

// CreateDraft queues a drafted message for review. The record enters the
// pipeline as pending with a fresh ID and idempotency key.
func (s *ApprovalService) CreateDraft(ctx context.Context, leadID string, channel models.Channel, kind models.ActionKind, recipient, subject, body string) (*models.Approval, error) {
	if !channel.Valid() {
		return nil, errors.New(errors.ErrCodeUnknownChannel, "unknown channel").
			WithContext("channel", string(channel))
	}
	if recipient == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "recipient is required")
	}
	if body == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "body is required")
	}

	approval := models.NewApproval(leadID, channel, kind, recipient, subject, body)
	if err := s.store.SaveApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"approvalId": approval.ID,
		"channel":    channel,
		"leadId":     leadID,
	}).Info("Approval queued for review")

	return approval, nil
}

// Approve moves a pending (or failed) approval to approved and stamps the
// approver. Approving an already-sent record is an idempotent no-op
// returning the unchanged record.
func (s *ApprovalService) Approve(ctx context.Context, id, approverID string) (*models.Approval, error) {
	approval, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if approval.Status == models.StatusSent {
		return approval, nil
	}

	if err := approval.Approve(approverID); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidTransition, "cannot approve").
			WithContext("approvalId", id).
			WithContext("status", string(approval.Status))
	}

	if err := s.store.SaveApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}
	s.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventApproved, "",
		fmt.Sprintf(`{"approver":%q}`, approverID)))

	s.logger.WithFields(logrus.Fields{
		"approvalId": id,
		"approver":   approverID,
	}).Info("Approval granted")

	return approval, nil
}

// Reject moves an approval to rejected with a reason. Rejecting an
// already-sent record is an idempotent no-op returning the unchanged record.
func (s *ApprovalService) Reject(ctx context.Context, id, approverID, reason string) (*models.Approval, error) {
	approval, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if approval.Status == models.StatusSent {
		return approval, nil
	}

	if err := approval.Reject(approverID, reason); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidTransition, "cannot reject").
			WithContext("approvalId", id).
			WithContext("status", string(approval.Status))
	}

	if err := s.store.SaveApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("failed to save approval: %w", err)
	}
	s.appendEvent(ctx, models.NewDispatchEvent(approval, models.EventRejected, "",
		fmt.Sprintf(`{"approver":%q,"reason":%q}`, approverID, reason)))

	s.logger.WithFields(logrus.Fields{
		"approvalId": id,
		"approver":   approverID,
		"reason":     reason,
	}).Info("Approval rejected")

	return approval, nil
}

// Get loads one approval.
func (s *ApprovalService) Get(ctx context.Context, id string) (*models.Approval, error) {
	return s.load(ctx, id)
}

// List returns all approvals in stored order.
func (s *ApprovalService) List(ctx context.Context) ([]*models.Approval, error) {
	return s.store.ListApprovals(ctx)
}

// Events returns the audit trail for one approval.
func (s *ApprovalService) Events(ctx context.Context, id string) ([]*models.DispatchEvent, error) {
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListEventsByApproval(ctx, id)
}

func (s *ApprovalService) load(ctx context.Context, id string) (*models.Approval, error) {
	approval, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval: %w", err)
	}
	if approval == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "approval not found").
			WithContext("approvalId", id)
	}
	return approval, nil
}

func (s *ApprovalService) appendEvent(ctx context.Context, event *models.DispatchEvent) {
	if err := s.events.AppendEvent(ctx, event); err != nil {
		s.logger.WithError(err).WithField("eventType", event.EventType).Error("Failed to append dispatch event")
	}
}
