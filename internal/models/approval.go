package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the lifecycle state of an outbound approval.
type ApprovalStatus string

const (
	StatusDraft    ApprovalStatus = "draft"
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
	StatusSent     ApprovalStatus = "sent"
	StatusFailed   ApprovalStatus = "failed"
	// StatusApprovedOpened marks channels without a programmatic send API:
	// the compose surface was opened but a human must complete the send.
	StatusApprovedOpened ApprovalStatus = "approved_opened"
)

// ActionKind describes what kind of outbound action the approval covers.
type ActionKind string

const (
	ActionSend    ActionKind = "send"
	ActionReply   ActionKind = "reply"
	ActionForward ActionKind = "forward"
	ActionDraft   ActionKind = "draft"
)

// legalTransitions whitelists every permitted status change. rejected and
// sent are terminal; approved_opened may be completed to sent by a human.
var legalTransitions = map[ApprovalStatus][]ApprovalStatus{
	StatusDraft:          {StatusPending, StatusRejected},
	StatusPending:        {StatusApproved, StatusRejected},
	StatusApproved:       {StatusSent, StatusFailed, StatusApprovedOpened},
	StatusRejected:       {},
	StatusSent:           {},
	StatusFailed:         {StatusApproved, StatusRejected},
	StatusApprovedOpened: {StatusSent},
}

// TransitionError reports an attempted status change outside the whitelist.
// It signals a programming or integration error, never a delivery failure.
type TransitionError struct {
	ApprovalID string
	From       ApprovalStatus
	To         ApprovalStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("illegal approval transition %s -> %s (approval %s)", e.From, e.To, e.ApprovalID)
}

// Approval is the unit of outbound work: a drafted message awaiting or
// having received human sign-off.
type Approval struct {
	ID             string         `db:"id" json:"id"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	LeadID         string         `db:"lead_id" json:"leadId"`
	Channel        Channel        `db:"channel" json:"channel"`
	ActionKind     ActionKind     `db:"action_kind" json:"actionKind"`
	Recipient      string         `db:"recipient" json:"recipient"`
	Subject        string         `db:"subject" json:"subject,omitempty"`
	Body           string         `db:"body" json:"body"`
	Status         ApprovalStatus `db:"status" json:"status"`
	ApprovedBy     string         `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time     `db:"approved_at" json:"approvedAt,omitempty"`
	Notes          string         `db:"notes" json:"notes,omitempty"`
	RetryCount     int            `db:"retry_count" json:"retryCount"`
	LastRetryAt    *time.Time     `db:"last_retry_at" json:"lastRetryAt,omitempty"`
	IdempotencyKey string         `db:"idempotency_key" json:"idempotencyKey"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// NewApproval creates an approval queued for human review. Drafts arriving
// here are already awaiting sign-off, so the initial status is pending.
func NewApproval(leadID string, channel Channel, kind ActionKind, recipient, subject, body string) *Approval {
	now := time.Now().UTC()
	return &Approval{
		ID:             uuid.NewString(),
		CreatedAt:      now,
		LeadID:         leadID,
		Channel:        channel,
		ActionKind:     kind,
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
		Status:         StatusPending,
		IdempotencyKey: uuid.NewString(),
		UpdatedAt:      now,
	}
}

// CanTransition reports whether moving from the current status to target is
// whitelisted.
func (a *Approval) CanTransition(target ApprovalStatus) bool {
	for _, allowed := range legalTransitions[a.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Transition moves the approval to target, or returns a TransitionError
// leaving the record unchanged.
func (a *Approval) Transition(target ApprovalStatus) error {
	if !a.CanTransition(target) {
		return TransitionError{ApprovalID: a.ID, From: a.Status, To: target}
	}
	a.Status = target
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Approve stamps the approver and moves the record to approved. Calling it
// on an already-sent record is an idempotent no-op.
func (a *Approval) Approve(approverID string) error {
	if a.Status == StatusSent {
		return nil
	}
	if err := a.Transition(StatusApproved); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.ApprovedBy = approverID
	a.ApprovedAt = &now
	return nil
}

// Reject stamps the approver, records the reason, and moves the record to
// rejected. Calling it on an already-sent record is an idempotent no-op.
func (a *Approval) Reject(approverID, reason string) error {
	if a.Status == StatusSent {
		return nil
	}
	if err := a.Transition(StatusRejected); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.ApprovedBy = approverID
	a.ApprovedAt = &now
	if reason != "" {
		a.AppendNote(fmt.Sprintf("rejected: %s", reason))
	}
	return nil
}

// IsSafeToSend is the single non-negotiable safety check: a send may only be
// attempted when the record is approved. Every adapter invocation must be
// preceded by this check, even when the caller already filtered.
func (a *Approval) IsSafeToSend() bool {
	return a.Status == StatusApproved
}

// MarkSent records a completed delivery.
func (a *Approval) MarkSent() error {
	return a.Transition(StatusSent)
}

// MarkOpened records that a compose surface was opened for a channel that
// requires manual completion.
func (a *Approval) MarkOpened() error {
	return a.Transition(StatusApprovedOpened)
}

// MarkFailed records a delivery failure with the error and timestamp.
func (a *Approval) MarkFailed(sendErr string) error {
	if err := a.Transition(StatusFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	a.LastRetryAt = &now
	a.AppendNote(fmt.Sprintf("send failed at %s: %s", now.Format(time.RFC3339), sendErr))
	return nil
}

// AppendNote adds a line to the free-text notes field.
func (a *Approval) AppendNote(note string) {
	if a.Notes == "" {
		a.Notes = note
		return
	}
	a.Notes = a.Notes + "\n" + note
}
