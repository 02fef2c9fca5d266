package models

import (
	"time"

	"github.com/google/uuid"

	"sendgate/internal/constants"
)

// FailedSend records a transient delivery failure awaiting retry.
type FailedSend struct {
	ID           string    `db:"id" json:"id"`
	ApprovalID   string    `db:"approval_id" json:"approvalId"`
	Channel      Channel   `db:"channel" json:"channel"`
	Recipient    string    `db:"recipient" json:"recipient"`
	Body         string    `db:"body" json:"body"`
	ErrorCode    string    `db:"error_code" json:"errorCode"`
	ErrorMessage string    `db:"error_message" json:"errorMessage"`
	RetryCount   int       `db:"retry_count" json:"retryCount"`
	MaxRetries   int       `db:"max_retries" json:"maxRetries"`
	NextRetryAt  time.Time `db:"next_retry_at" json:"nextRetryAt"`
	FailedAt     time.Time `db:"failed_at" json:"failedAt"`
}

// NewFailedSend creates the first failure record for an approval, with the
// next retry scheduled off the backoff ladder at retry count zero.
func NewFailedSend(a *Approval, errorCode, errorMessage string) *FailedSend {
	now := time.Now().UTC()
	return &FailedSend{
		ID:           uuid.NewString(),
		ApprovalID:   a.ID,
		Channel:      a.Channel,
		Recipient:    a.Recipient,
		Body:         a.Body,
		ErrorCode:    errorCode,
		ErrorMessage: errorMessage,
		RetryCount:   0,
		MaxRetries:   constants.DefaultMaxSendRetries,
		NextRetryAt:  now.Add(BackoffDelay(0)),
		FailedAt:     now,
	}
}

// BackoffDelay returns the wall-clock delay before the retry at the given
// retry count, saturating at the ladder's last rung.
func BackoffDelay(retryCount int) time.Duration {
	ladder := constants.BackoffLadderMinutes
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount >= len(ladder) {
		retryCount = len(ladder) - 1
	}
	return time.Duration(ladder[retryCount]) * time.Minute
}

// Exhausted reports whether the failure has used up its retry budget.
func (f *FailedSend) Exhausted() bool {
	return f.RetryCount >= f.MaxRetries
}

// RecordFailure increments the retry count and reschedules the next attempt.
func (f *FailedSend) RecordFailure(errorCode, errorMessage string) {
	f.RetryCount++
	f.ErrorCode = errorCode
	f.ErrorMessage = errorMessage
	f.NextRetryAt = time.Now().UTC().Add(BackoffDelay(f.RetryCount))
}

// DeadLetter is a permanently failed send. Conversion from FailedSend is
// one-way; dead letters require manual operator intervention and a fresh
// approval to re-enter the pipeline.
type DeadLetter struct {
	ID             string    `db:"id" json:"id"`
	ApprovalID     string    `db:"approval_id" json:"approvalId"`
	Channel        Channel   `db:"channel" json:"channel"`
	Recipient      string    `db:"recipient" json:"recipient"`
	Body           string    `db:"body" json:"body"`
	ErrorCode      string    `db:"error_code" json:"errorCode"`
	ErrorMessage   string    `db:"error_message" json:"errorMessage"`
	RetryCount     int       `db:"retry_count" json:"retryCount"`
	FinalError     string    `db:"final_error" json:"finalError"`
	FailedAt       time.Time `db:"failed_at" json:"failedAt"`
	DeadLetteredAt time.Time `db:"dead_lettered_at" json:"deadLetteredAt"`
}

// ToDeadLetter converts the failure into its terminal form.
func (f *FailedSend) ToDeadLetter(finalError string) *DeadLetter {
	return &DeadLetter{
		ID:             f.ID,
		ApprovalID:     f.ApprovalID,
		Channel:        f.Channel,
		Recipient:      f.Recipient,
		Body:           f.Body,
		ErrorCode:      f.ErrorCode,
		ErrorMessage:   f.ErrorMessage,
		RetryCount:     f.RetryCount,
		FinalError:     finalError,
		FailedAt:       f.FailedAt,
		DeadLetteredAt: time.Now().UTC(),
	}
}
