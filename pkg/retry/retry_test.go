package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func TestWithExponentialBackoffSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoffRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := WithExponentialBackoff(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) bool { return true })

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoffExhaustsAttempts(t *testing.T) {
	calls := 0
	sentinel := errors.New("still down")
	err := WithExponentialBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return sentinel
	}, func(error) bool { return true })

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoffStopsOnNonRetryable(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad request")
	err := WithExponentialBackoff(context.Background(), fastConfig(), func() error {
		calls++
		return sentinel
	}, func(error) bool { return false })

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithExponentialBackoff(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, Multiplier: 2.0}, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, func(error) bool { return true })

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
