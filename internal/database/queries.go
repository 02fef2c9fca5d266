package database

// Approval queries
const (
	upsertApprovalQuery = `
		INSERT INTO approvals (
			id, created_at, lead_id, channel, action_kind,
			recipient, recipient_hash, subject, body, status,
			approved_by, approved_at, notes, retry_count, last_retry_at,
			idempotency_key, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recipient = excluded.recipient,
			recipient_hash = excluded.recipient_hash,
			subject = excluded.subject,
			body = excluded.body,
			status = excluded.status,
			approved_by = excluded.approved_by,
			approved_at = excluded.approved_at,
			notes = excluded.notes,
			retry_count = excluded.retry_count,
			last_retry_at = excluded.last_retry_at,
			updated_at = excluded.updated_at
	`

	selectApprovalColumns = `
		SELECT id, created_at, lead_id, channel, action_kind,
			   recipient, subject, body, status,
			   approved_by, approved_at, notes, retry_count, last_retry_at,
			   idempotency_key, updated_at
		FROM approvals
	`

	selectApprovalByIDQuery = selectApprovalColumns + `WHERE id = ?`

	selectApprovalsQuery = selectApprovalColumns + `ORDER BY created_at, id`
)

// Suppression queries
const (
	upsertSuppressionQuery = `
		INSERT INTO suppression_entries (value, reason, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(value) DO UPDATE SET reason = excluded.reason
	`

	selectSuppressionByValueQuery = `
		SELECT value, reason, added_at
		FROM suppression_entries
		WHERE value = ?
	`

	selectSuppressionQuery = `
		SELECT value, reason, added_at
		FROM suppression_entries
		ORDER BY added_at, value
	`

	deleteSuppressionQuery = `
		DELETE FROM suppression_entries WHERE value = ?
	`
)

// Failed send and dead letter queries
const (
	upsertFailedSendQuery = `
		INSERT INTO failed_sends (
			id, approval_id, channel, recipient, body,
			error_code, error_message, retry_count, max_retries,
			next_retry_at, failed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			error_code = excluded.error_code,
			error_message = excluded.error_message,
			retry_count = excluded.retry_count,
			next_retry_at = excluded.next_retry_at
	`

	selectFailedSendColumns = `
		SELECT id, approval_id, channel, recipient, body,
			   error_code, error_message, retry_count, max_retries,
			   next_retry_at, failed_at
		FROM failed_sends
	`

	selectFailedSendsQuery = selectFailedSendColumns + `ORDER BY next_retry_at, id`

	selectDueFailedSendsQuery = selectFailedSendColumns + `WHERE next_retry_at <= ? ORDER BY next_retry_at, id`

	deleteFailedSendQuery = `
		DELETE FROM failed_sends WHERE id = ?
	`

	insertDeadLetterQuery = `
		INSERT INTO dead_letters (
			id, approval_id, channel, recipient, body,
			error_code, error_message, retry_count, final_error,
			failed_at, dead_lettered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectDeadLettersQuery = `
		SELECT id, approval_id, channel, recipient, body,
			   error_code, error_message, retry_count, final_error,
			   failed_at, dead_lettered_at
		FROM dead_letters
		ORDER BY dead_lettered_at, id
	`
)

// Dispatch event queries
const (
	insertEventQuery = `
		INSERT INTO dispatch_events (
			id, ts, lead_id, channel, event_type, campaign,
			message_id, approval_id, meta_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectEventsByApprovalQuery = `
		SELECT id, ts, lead_id, channel, event_type, campaign,
			   message_id, approval_id, meta_json
		FROM dispatch_events
		WHERE approval_id = ?
		ORDER BY ts, id
	`
)
