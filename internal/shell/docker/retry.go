package docker

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// Bounded Retry
// =============================================================================

const (
	// maxAttempts bounds how many times a transient runtime failure is retried.
	maxAttempts = 3
	// initialBackoff is the delay before the first retry; it doubles per attempt.
	initialBackoff = 500 * time.Millisecond
	// maxBackoff caps the delay between attempts.
	maxBackoff = 8 * time.Second
)

// WithRetry runs fn up to maxAttempts times, backing off between attempts.
// Only transient errors (per IsTransient) are retried; a definitive failure
// returns immediately. The last error is returned when attempts run out.
func WithRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return fmt.Errorf("%s: giving up after %d attempts: %w", op, maxAttempts, lastErr)
}
