package transport

import (
	"context"
	"time"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		Delay:       1 * time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// RetryFunc is a function that can be retried
type RetryFunc func(ctx context.Context, attempt int) error

// Retry executes fn with bounded linear backoff. retryable decides
// whether a failure is worth another attempt; a nil predicate retries
// every error. The last error is returned as-is so classification
// survives the loop.
func Retry(ctx context.Context, config *RetryConfig, retryable func(error) bool, fn RetryFunc) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}

		if attempt < config.MaxAttempts {
			delay := config.Delay * time.Duration(attempt)
			if config.MaxDelay > 0 && delay > config.MaxDelay {
				delay = config.MaxDelay
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}
