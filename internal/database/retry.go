package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sendgate/internal/constants"
)

// withDBRetry executes a database operation with bounded retries on
// transient SQLite errors (lock contention, disk I/O).
func withDBRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error

	maxAttempts := constants.DefaultDatabaseRetryAttempts
	initialBackoff := time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryableDBError(err) {
			return fmt.Errorf("%s failed (non-retryable): %w", operationName, err)
		}

		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * initialBackoff
		if max := time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond; backoff > max {
			backoff = max
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxAttempts, lastErr)
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()

	// Lock contention and disk I/O problems are typically transient
	if strings.Contains(errStr, "database is locked") || strings.Contains(errStr, "disk I/O error") {
		return true
	}

	// Constraint and schema errors will not heal with a retry
	if strings.Contains(errStr, "constraint") || strings.Contains(errStr, "no such table") || strings.Contains(errStr, "no such column") {
		return false
	}

	return false
}
