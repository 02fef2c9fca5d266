package models

import "time"

// SendWindow is an ephemeral record of one delivered message, used only for
// rate accounting. Entries are dropped past the 24-hour rolling horizon and
// have no identity beyond their fields.
type SendWindow struct {
	Channel    Channel
	ApprovalID string
	SentAt     time.Time
}
