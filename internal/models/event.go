package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an entry in the dispatch audit stream.
type EventType string

const (
	EventApproved          EventType = "approved"
	EventRejected          EventType = "rejected"
	EventSent              EventType = "sent"
	EventOpened            EventType = "opened"
	EventSendFailed        EventType = "send_failed"
	EventComplianceBlocked EventType = "compliance_blocked"
	EventRateLimited       EventType = "rate_limited"
	EventStale             EventType = "stale"
	EventRetried           EventType = "retried"
	EventDeadLettered      EventType = "dead_lettered"
)

// DispatchEvent is one audit record. Every attempt, skip, and state change
// emits one, with enough metadata to reconstruct the full delivery history
// without touching adapter internals.
type DispatchEvent struct {
	ID         string    `db:"id" json:"id"`
	Timestamp  time.Time `db:"ts" json:"timestamp"`
	LeadID     string    `db:"lead_id" json:"leadId"`
	Channel    Channel   `db:"channel" json:"channel"`
	EventType  EventType `db:"event_type" json:"eventType"`
	Campaign   string    `db:"campaign" json:"campaign,omitempty"`
	MessageID  string    `db:"message_id" json:"messageId,omitempty"`
	ApprovalID string    `db:"approval_id" json:"approvalId"`
	MetaJSON   string    `db:"meta_json" json:"metaJson,omitempty"`
}

// NewDispatchEvent builds an audit event for the given approval.
func NewDispatchEvent(a *Approval, eventType EventType, messageID, metaJSON string) *DispatchEvent {
	return &DispatchEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		LeadID:     a.LeadID,
		Channel:    a.Channel,
		EventType:  eventType,
		MessageID:  messageID,
		ApprovalID: a.ID,
		MetaJSON:   metaJSON,
	}
}

// SendResult is the outcome contract of a channel send adapter.
type SendResult struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
