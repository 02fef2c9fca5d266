package database

import (
	"context"
	"fmt"
	"time"

	"sendgate/internal/models"
)

// SaveFailedSend upserts a failure record; retries re-persist the same ID
// with an updated retry count and schedule.
func (d *Database) SaveFailedSend(ctx context.Context, fs *models.FailedSend) error {
	recipient, err := d.encryptor.EncryptForLookupIfEnabled(fs.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt recipient: %w", err)
	}
	body, err := d.encryptor.EncryptIfEnabled(fs.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt body: %w", err)
	}
	return withDBRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, upsertFailedSendQuery,
			fs.ID, fs.ApprovalID, string(fs.Channel), recipient, body,
			fs.ErrorCode, fs.ErrorMessage, fs.RetryCount, fs.MaxRetries,
			fs.NextRetryAt, fs.FailedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save failed send: %w", err)
		}
		return nil
	}, "SaveFailedSend")
}

// DeleteFailedSend removes a failure record, either after a successful retry
// or as part of dead-letter conversion.
func (d *Database) DeleteFailedSend(ctx context.Context, id string) error {
	return withDBRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, deleteFailedSendQuery, id)
		if err != nil {
			return fmt.Errorf("failed to delete failed send: %w", err)
		}
		return nil
	}, "DeleteFailedSend")
}

// ListFailedSends returns every active failure record.
func (d *Database) ListFailedSends(ctx context.Context) ([]*models.FailedSend, error) {
	return d.queryFailedSends(ctx, selectFailedSendsQuery)
}

// ListDueFailedSends returns failure records whose next retry has elapsed.
func (d *Database) ListDueFailedSends(ctx context.Context, now time.Time) ([]*models.FailedSend, error) {
	return d.queryFailedSends(ctx, selectDueFailedSendsQuery, now)
}

func (d *Database) queryFailedSends(ctx context.Context, query string, args ...interface{}) ([]*models.FailedSend, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed sends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.FailedSend
	for rows.Next() {
		var fs models.FailedSend
		var channel, recipient, body string
		err := rows.Scan(
			&fs.ID, &fs.ApprovalID, &channel, &recipient, &body,
			&fs.ErrorCode, &fs.ErrorMessage, &fs.RetryCount, &fs.MaxRetries,
			&fs.NextRetryAt, &fs.FailedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan failed send: %w", err)
		}
		fs.Channel = models.Channel(channel)
		if fs.Recipient, err = d.encryptor.DecryptIfEnabled(recipient); err != nil {
			return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
		}
		if fs.Body, err = d.encryptor.DecryptIfEnabled(body); err != nil {
			return nil, fmt.Errorf("failed to decrypt body: %w", err)
		}
		result = append(result, &fs)
	}
	return result, rows.Err()
}

// SaveDeadLetter records a permanently failed send. Insert-only: dead
// letters are never updated or resurrected.
func (d *Database) SaveDeadLetter(ctx context.Context, dl *models.DeadLetter) error {
	recipient, err := d.encryptor.EncryptForLookupIfEnabled(dl.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt recipient: %w", err)
	}
	body, err := d.encryptor.EncryptIfEnabled(dl.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt body: %w", err)
	}
	return withDBRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, insertDeadLetterQuery,
			dl.ID, dl.ApprovalID, string(dl.Channel), recipient, body,
			dl.ErrorCode, dl.ErrorMessage, dl.RetryCount, dl.FinalError,
			dl.FailedAt, dl.DeadLetteredAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save dead letter: %w", err)
		}
		return nil
	}, "SaveDeadLetter")
}

// ListDeadLetters returns every dead letter for operator review.
func (d *Database) ListDeadLetters(ctx context.Context) ([]*models.DeadLetter, error) {
	rows, err := d.db.QueryContext(ctx, selectDeadLettersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*models.DeadLetter
	for rows.Next() {
		var dl models.DeadLetter
		var channel, recipient, body string
		err := rows.Scan(
			&dl.ID, &dl.ApprovalID, &channel, &recipient, &body,
			&dl.ErrorCode, &dl.ErrorMessage, &dl.RetryCount, &dl.FinalError,
			&dl.FailedAt, &dl.DeadLetteredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dead letter: %w", err)
		}
		dl.Channel = models.Channel(channel)
		if dl.Recipient, err = d.encryptor.DecryptIfEnabled(recipient); err != nil {
			return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
		}
		if dl.Body, err = d.encryptor.DecryptIfEnabled(body); err != nil {
			return nil, fmt.Errorf("failed to decrypt body: %w", err)
		}
		result = append(result, &dl)
	}
	return result, rows.Err()
}
