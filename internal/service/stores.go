package service

import (
	"context"
	"time"

	"sendgate/internal/models"
)

// ApprovalStore is the persistence contract for approval records.
type ApprovalStore interface {
	ListApprovals(ctx context.Context) ([]*models.Approval, error)
	GetApproval(ctx context.Context, id string) (*models.Approval, error)
	SaveApproval(ctx context.Context, a *models.Approval) error
	SaveApprovals(ctx context.Context, approvals []*models.Approval) error
}

// SuppressionStore is the persistence contract for the do-not-contact list.
type SuppressionStore interface {
	ListSuppressionEntries(ctx context.Context) ([]*models.SuppressionEntry, error)
	GetSuppressionEntry(ctx context.Context, value string) (*models.SuppressionEntry, error)
	UpsertSuppressionEntry(ctx context.Context, entry *models.SuppressionEntry) error
	DeleteSuppressionEntry(ctx context.Context, value string) error
}

// FailedSendStore is the persistence contract for the retry pipeline.
// Failed sends and dead letters are first-class persisted collections.
type FailedSendStore interface {
	SaveFailedSend(ctx context.Context, fs *models.FailedSend) error
	DeleteFailedSend(ctx context.Context, id string) error
	ListFailedSends(ctx context.Context) ([]*models.FailedSend, error)
	ListDueFailedSends(ctx context.Context, now time.Time) ([]*models.FailedSend, error)
	SaveDeadLetter(ctx context.Context, dl *models.DeadLetter) error
	ListDeadLetters(ctx context.Context) ([]*models.DeadLetter, error)
}

// EventStore receives the append-only dispatch audit stream.
type EventStore interface {
	AppendEvent(ctx context.Context, event *models.DispatchEvent) error
	ListEventsByApproval(ctx context.Context, approvalID string) ([]*models.DispatchEvent, error)
}
