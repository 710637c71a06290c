package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetryPolicy bounds Retry.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	// Retryable decides whether an error is worth another attempt.
	Retryable func(error) bool
}

// SQLiteRetry retries SQLite busy and locked errors with 50ms, 100ms
// backoff.
var SQLiteRetry = RetryPolicy{Attempts: 3, BaseDelay: 50 * time.Millisecond, Retryable: IsSQLiteConflictError}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are used up. The delay doubles after each failed attempt.
func Retry(ctx context.Context, p RetryPolicy, op string, fn func(context.Context) error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for i := range attempts {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(err) || i == attempts-1 {
			break
		}

		delay := p.BaseDelay * time.Duration(1<<i)
		slog.Debug("Operation failed with a retryable error, retrying",
			"op", op,
			"attempt", i+1,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
