package database

import (
	"context"
	"database/sql"
	"fmt"

	"sendgate/internal/models"
)

// UpsertSuppressionEntry inserts or updates a suppression entry keyed by
// normalized value. Existing entries keep their added_at timestamp.
func (d *Database) UpsertSuppressionEntry(ctx context.Context, entry *models.SuppressionEntry) error {
	value, err := d.encryptor.EncryptForLookupIfEnabled(entry.Value)
	if err != nil {
		return fmt.Errorf("failed to encrypt suppression value: %w", err)
	}
	return withDBRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, upsertSuppressionQuery, value, entry.Reason, entry.AddedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert suppression entry: %w", err)
		}
		return nil
	}, "UpsertSuppressionEntry")
}

// GetSuppressionEntry looks up a normalized contact value; returns nil when
// the contact is not suppressed.
func (d *Database) GetSuppressionEntry(ctx context.Context, value string) (*models.SuppressionEntry, error) {
	lookup, err := d.encryptor.EncryptForLookupIfEnabled(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt suppression lookup: %w", err)
	}

	var entry models.SuppressionEntry
	var stored string
	err = d.db.QueryRowContext(ctx, selectSuppressionByValueQuery, lookup).
		Scan(&stored, &entry.Reason, &entry.AddedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suppression entry: %w", err)
	}

	if entry.Value, err = d.encryptor.DecryptIfEnabled(stored); err != nil {
		return nil, fmt.Errorf("failed to decrypt suppression value: %w", err)
	}
	return &entry, nil
}

// ListSuppressionEntries returns the whole suppression list.
func (d *Database) ListSuppressionEntries(ctx context.Context) ([]*models.SuppressionEntry, error) {
	rows, err := d.db.QueryContext(ctx, selectSuppressionQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppression entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*models.SuppressionEntry
	for rows.Next() {
		var entry models.SuppressionEntry
		var stored string
		if err := rows.Scan(&stored, &entry.Reason, &entry.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan suppression entry: %w", err)
		}
		if entry.Value, err = d.encryptor.DecryptIfEnabled(stored); err != nil {
			return nil, fmt.Errorf("failed to decrypt suppression value: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// DeleteSuppressionEntry removes a contact from the suppression list.
// Deleting an absent value is not an error.
func (d *Database) DeleteSuppressionEntry(ctx context.Context, value string) error {
	lookup, err := d.encryptor.EncryptForLookupIfEnabled(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt suppression lookup: %w", err)
	}
	return withDBRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, deleteSuppressionQuery, lookup)
		if err != nil {
			return fmt.Errorf("failed to delete suppression entry: %w", err)
		}
		return nil
	}, "DeleteSuppressionEntry")
}
