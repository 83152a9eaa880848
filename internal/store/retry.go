package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/diffbot/internal/shared"
)

const (
	maxAttempts    = 4
	retryBaseDelay = 50 * time.Millisecond
)

// withRetry runs fn up to maxAttempts times, retrying SQLITE_BUSY and
// "database is locked" failures with exponential backoff: 50ms, 100ms, 200ms.
func withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < maxAttempts; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) || i == maxAttempts-1 {
			return err
		}

		delay := retryBaseDelay * time.Duration(1<<i)
		slog.Debug("Database locked, retrying",
			"op", op,
			"attempt", i+1,
			"delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
