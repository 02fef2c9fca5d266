package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"sendgate/internal/migrations"
	"sendgate/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed store for approvals, suppression entries,
// failed sends, dead letters, and the dispatch audit stream.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304 - Path supplied by operator config
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveApproval upserts a single approval record.
func (d *Database) SaveApproval(ctx context.Context, a *models.Approval) error {
	return withDBRetry(ctx, func() error {
		return d.execSaveApproval(ctx, d.db, a)
	}, "SaveApproval")
}

// SaveApprovals upserts the whole batch in one transaction; callers persist
// at batch granularity after a dispatch run.
func (d *Database) SaveApprovals(ctx context.Context, approvals []*models.Approval) error {
	return withDBRetry(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		for _, a := range approvals {
			if err := d.execSaveApproval(ctx, tx, a); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	}, "SaveApprovals")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (d *Database) execSaveApproval(ctx context.Context, ex execer, a *models.Approval) error {
	encryptedRecipient, err := d.encryptor.EncryptIfEnabled(a.Recipient)
	if err != nil {
		return fmt.Errorf("failed to encrypt recipient: %w", err)
	}
	recipientHash, err := d.encryptor.EncryptForLookupIfEnabled(models.NormalizeRecipient(a.Channel, a.Recipient))
	if err != nil {
		return fmt.Errorf("failed to hash recipient: %w", err)
	}
	encryptedBody, err := d.encryptor.EncryptIfEnabled(a.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt body: %w", err)
	}

	_, err = ex.ExecContext(ctx, upsertApprovalQuery,
		a.ID, a.CreatedAt, a.LeadID, string(a.Channel), string(a.ActionKind),
		encryptedRecipient, recipientHash, a.Subject, encryptedBody, string(a.Status),
		a.ApprovedBy, nullableTime(a.ApprovedAt), a.Notes, a.RetryCount, nullableTime(a.LastRetryAt),
		a.IdempotencyKey, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save approval: %w", err)
	}
	return nil
}

// GetApproval loads a single approval by ID; returns nil when absent.
func (d *Database) GetApproval(ctx context.Context, id string) (*models.Approval, error) {
	row := d.db.QueryRowContext(ctx, selectApprovalByIDQuery, id)
	a, err := d.scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return a, nil
}

// ListApprovals returns every approval in stored order.
func (d *Database) ListApprovals(ctx context.Context) ([]*models.Approval, error) {
	rows, err := d.db.QueryContext(ctx, selectApprovalsQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var approvals []*models.Approval
	for rows.Next() {
		a, err := d.scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (d *Database) scanApproval(row rowScanner) (*models.Approval, error) {
	var (
		a                        models.Approval
		channel, actionKind      string
		status                   string
		encryptedRecipient, body string
		approvedAt, lastRetryAt  sql.NullTime
	)

	err := row.Scan(
		&a.ID, &a.CreatedAt, &a.LeadID, &channel, &actionKind,
		&encryptedRecipient, &a.Subject, &body, &status,
		&a.ApprovedBy, &approvedAt, &a.Notes, &a.RetryCount, &lastRetryAt,
		&a.IdempotencyKey, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Channel = models.Channel(channel)
	a.ActionKind = models.ActionKind(actionKind)
	a.Status = models.ApprovalStatus(status)

	if a.Recipient, err = d.encryptor.DecryptIfEnabled(encryptedRecipient); err != nil {
		return nil, fmt.Errorf("failed to decrypt recipient: %w", err)
	}
	if a.Body, err = d.encryptor.DecryptIfEnabled(body); err != nil {
		return nil, fmt.Errorf("failed to decrypt body: %w", err)
	}

	if approvedAt.Valid {
		t := approvedAt.Time
		a.ApprovedAt = &t
	}
	if lastRetryAt.Valid {
		t := lastRetryAt.Time
		a.LastRetryAt = &t
	}

	return &a, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
