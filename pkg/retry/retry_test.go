package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 3, InitialInterval: time.Millisecond}, func() error {
		calls++
		return errors.New("still failing")
	})

	require.Error(t, err)
	assert.Equal(t, "still failing", err.Error())
	assert.Equal(t, 3, calls)
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), Policy{MaxAttempts: 5, InitialInterval: time.Millisecond}, func() error {
		calls++
		return NewFatalError(errors.New("bad request"))
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var fatal FatalError
	assert.True(t, errors.As(err, &fatal))
}

func TestRetryWithCallback_DoublingSchedule(t *testing.T) {
	var delays []time.Duration
	var attempts []int

	err := RetryWithCallback(context.Background(), Policy{
		MaxAttempts:     4,
		InitialInterval: 2 * time.Millisecond,
		Multiplier:      2,
	}, func() error {
		return errors.New("transient")
	}, func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
		delays = append(delays, nextDelay)
	})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond, 8 * time.Millisecond}, delays)
}

func TestRetry_ContextCancelInterruptsWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	start := time.Now()
	err := RetryWithCallback(ctx, Policy{MaxAttempts: 3, InitialInterval: time.Hour}, func() error {
		calls++
		return errors.New("down")
	}, func(int, error, time.Duration) {
		cancel()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestCalculateBackoffDuration(t *testing.T) {
	assert.Equal(t, time.Second, CalculateBackoffDuration(1, time.Second, 2, 0))
	assert.Equal(t, 2*time.Second, CalculateBackoffDuration(2, time.Second, 2, 0))
	assert.Equal(t, 4*time.Second, CalculateBackoffDuration(3, time.Second, 2, 0))
	assert.Equal(t, 3*time.Second, CalculateBackoffDuration(3, time.Second, 2, 3*time.Second))
}
