package database

import (
	"context"
	"fmt"

	"sendgate/internal/models"
)

// AppendEvent writes one audit record. Events are append-only.
func (d *Database) AppendEvent(ctx context.Context, event *models.DispatchEvent) error {
	return withDBRetry(ctx, func() error {
		_, err := d.db.ExecContext(ctx, insertEventQuery,
			event.ID, event.Timestamp, event.LeadID, string(event.Channel),
			string(event.EventType), event.Campaign, event.MessageID,
			event.ApprovalID, event.MetaJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to append event: %w", err)
		}
		return nil
	}, "AppendEvent")
}

// ListEventsByApproval returns the audit trail for one approval in order.
func (d *Database) ListEventsByApproval(ctx context.Context, approvalID string) ([]*models.DispatchEvent, error) {
	rows, err := d.db.QueryContext(ctx, selectEventsByApprovalQuery, approvalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*models.DispatchEvent
	for rows.Next() {
		var ev models.DispatchEvent
		var channel, eventType string
		err := rows.Scan(
			&ev.ID, &ev.Timestamp, &ev.LeadID, &channel,
			&eventType, &ev.Campaign, &ev.MessageID,
			&ev.ApprovalID, &ev.MetaJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Channel = models.Channel(channel)
		ev.EventType = models.EventType(eventType)
		events = append(events, &ev)
	}
	return events, rows.Err()
}
