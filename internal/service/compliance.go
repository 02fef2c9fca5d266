package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sendgate/internal/models"
)

// ComplianceGate answers allow/block for recipients against the suppression
// list. A block must short-circuit dispatch before any rate-limit check or
// adapter call.
type ComplianceGate struct {
	store  SuppressionStore
	logger *logrus.Logger
}

// NewComplianceGate creates a gate backed by the given suppression store.
func NewComplianceGate(store SuppressionStore, logger *logrus.Logger) *ComplianceGate {
	return &ComplianceGate{store: store, logger: logger}
}

// CheckRecipient normalizes the contact value and looks it up in the
// suppression set. Suppressed recipients come back denied with the entry's
// reason.
func (g *ComplianceGate) CheckRecipient(ctx context.Context, value string) (models.Decision, error) {
	return g.checkNormalized(ctx, models.NormalizeContact(value))
}

// CheckApproval runs the recipient check using the approval's channel to
// pick the normalization; a linkedin handle must not be digit-stripped like
// a phone number.
func (g *ComplianceGate) CheckApproval(ctx context.Context, approval *models.Approval) (models.Decision, error) {
	return g.checkNormalized(ctx, models.NormalizeRecipient(approval.Channel, approval.Recipient))
}

func (g *ComplianceGate) checkNormalized(ctx context.Context, normalized string) (models.Decision, error) {
	if normalized == "" {
		return models.Deny("empty recipient"), nil
	}

	entry, err := g.store.GetSuppressionEntry(ctx, normalized)
	if err != nil {
		return models.Decision{}, fmt.Errorf("suppression lookup failed: %w", err)
	}
	if entry != nil {
		return models.Deny(entry.Reason), nil
	}
	return models.Allow(), nil
}

// Add puts a contact on the suppression list. Adding an already-present
// value is idempotent and returns the existing entry with its original
// reason unmodified.
func (g *ComplianceGate) Add(ctx context.Context, value, reason string) (*models.SuppressionEntry, error) {
	normalized := models.NormalizeContact(value)
	if normalized == "" {
		return nil, fmt.Errorf("empty suppression value")
	}

	existing, err := g.store.GetSuppressionEntry(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("suppression lookup failed: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	entry := models.NewSuppressionEntry(normalized, reason)
	if err := g.store.UpsertSuppressionEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add suppression entry: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"reason": reason,
	}).Info("Added suppression entry")

	return entry, nil
}

// Remove takes a contact off the suppression list. Removing an absent value
// is a no-op.
func (g *ComplianceGate) Remove(ctx context.Context, value string) error {
	normalized := models.NormalizeContact(value)
	if normalized == "" {
		return nil
	}
	if err := g.store.DeleteSuppressionEntry(ctx, normalized); err != nil {
		return fmt.Errorf("failed to remove suppression entry: %w", err)
	}
	return nil
}

// UpdateReason replaces the reason on an existing entry. Updating an absent
// value creates the entry.
func (g *ComplianceGate) UpdateReason(ctx context.Context, value, reason string) (*models.SuppressionEntry, error) {
	normalized := models.NormalizeContact(value)
	if normalized == "" {
		return nil, fmt.Errorf("empty suppression value")
	}

	entry, err := g.store.GetSuppressionEntry(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("suppression lookup failed: %w", err)
	}
	if entry == nil {
		entry = models.NewSuppressionEntry(normalized, reason)
	} else {
		entry.Reason = reason
	}

	if err := g.store.UpsertSuppressionEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update suppression entry: %w", err)
	}
	return entry, nil
}

// BulkAdd suppresses several contacts at once, skipping values already
// present. It returns the entries that were actually added.
func (g *ComplianceGate) BulkAdd(ctx context.Context, values []string, reason string) ([]*models.SuppressionEntry, error) {
	var added []*models.SuppressionEntry
	for _, value := range values {
		normalized := models.NormalizeContact(value)
		if normalized == "" {
			continue
		}
		existing, err := g.store.GetSuppressionEntry(ctx, normalized)
		if err != nil {
			return added, fmt.Errorf("suppression lookup failed: %w", err)
		}
		if existing != nil {
			continue
		}
		entry := models.NewSuppressionEntry(normalized, reason)
		if err := g.store.UpsertSuppressionEntry(ctx, entry); err != nil {
			return added, fmt.Errorf("failed to add suppression entry: %w", err)
		}
		added = append(added, entry)
	}
	return added, nil
}

// List returns the full suppression list.
func (g *ComplianceGate) List(ctx context.Context) ([]*models.SuppressionEntry, error) {
	return g.store.ListSuppressionEntries(ctx)
}
