package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zonebook/zonebook-go/internal/transport"
)

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	cfg := &transport.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}
	boom := errors.New("boom")

	attempts := 0
	err := transport.Retry(context.Background(), cfg, nil, func(ctx context.Context, attempt int) error {
		attempts++
		assert.Equal(t, attempts, attempt)
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
}

func TestRetryReturnsNilOnSuccess(t *testing.T) {
	cfg := &transport.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}

	attempts := 0
	err := transport.Retry(context.Background(), cfg, nil, func(ctx context.Context, attempt int) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryHonorsPredicate(t *testing.T) {
	cfg := &transport.RetryConfig{MaxAttempts: 5, Delay: time.Millisecond}
	fatal := errors.New("fatal")

	attempts := 0
	err := transport.Retry(context.Background(), cfg, func(err error) bool { return false }, func(ctx context.Context, attempt int) error {
		attempts++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, attempts, "non-retryable errors stop the loop")
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	cfg := &transport.RetryConfig{MaxAttempts: 10, Delay: 50 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := transport.Retry(ctx, cfg, nil, func(ctx context.Context, attempt int) error {
		attempts++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2)
}

func TestRetryDelayCappedAtMax(t *testing.T) {
	cfg := &transport.RetryConfig{MaxAttempts: 4, Delay: 20 * time.Millisecond, MaxDelay: 25 * time.Millisecond}

	start := time.Now()
	_ = transport.Retry(context.Background(), cfg, nil, func(ctx context.Context, attempt int) error {
		return errors.New("transient")
	})

	// Linear backoff would sleep 20+40+60ms; the cap holds it to 20+25+25ms.
	assert.Less(t, time.Since(start), 110*time.Millisecond)
}
