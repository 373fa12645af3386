package monitoring_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"rivalwatch/internal/logger"
	"rivalwatch/internal/monitoring"
)

func runLockerContract(t *testing.T, locker monitoring.KeywordLocker) {
	ctx := context.Background()

	t.Run("reject when held", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "k1", false)
		require.NoError(t, err)

		_, err = locker.Acquire(ctx, "k1", false)
		assert.ErrorIs(t, err, monitoring.ErrLockHeld)

		other, err := locker.Acquire(ctx, "k2", false)
		require.NoError(t, err, "different keywords are independent")
		other()

		release()
		release()

		again, err := locker.Acquire(ctx, "k1", false)
		require.NoError(t, err)
		again()
	})

	t.Run("wait respects context", func(t *testing.T) {
		release, err := locker.Acquire(ctx, "k3", false)
		require.NoError(t, err)
		defer release()

		waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		_, err = locker.Acquire(waitCtx, "k3", true)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("waiters are serialized", func(t *testing.T) {
		var active, maxActive int32
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locker.Acquire(ctx, "k4", true)
				if !assert.NoError(t, err) {
					return
				}
				n := atomic.AddInt32(&active, 1)
				for {
					m := atomic.LoadInt32(&maxActive)
					if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxActive)
	})
}

func TestLocalLocker(t *testing.T) {
	runLockerContract(t, monitoring.NewLocalLocker())
}

func TestRedisLocker(t *testing.T) {
	_, client := newMiniredisClient(t)
	runLockerContract(t, monitoring.NewRedisLocker(client, "test:", time.Minute, logger.NopLogger()))
}

func TestRedisLocker_ReleaseOnlyOwnLock(t *testing.T) {
	mr, client := newMiniredisClient(t)
	locker := monitoring.NewRedisLocker(client, "test:", time.Second, logger.NopLogger())
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "k", false)
	require.NoError(t, err)

	// The TTL lapses and another holder takes over.
	mr.FastForward(2 * time.Second)
	other, err := locker.Acquire(ctx, "k", false)
	require.NoError(t, err)

	release()
	_, err = locker.Acquire(ctx, "k", false)
	assert.ErrorIs(t, err, monitoring.ErrLockHeld)

	other()
	final, err := locker.Acquire(ctx, "k", false)
	require.NoError(t, err)
	final()
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	mr, client := newMiniredisClient(t)
	core, logs := observer.New(zapcore.WarnLevel)
	locker := monitoring.NewRedisLocker(client, "test:", time.Minute, logger.NewWithCore(core, "test"))

	release, err := locker.Acquire(context.Background(), "k", false)
	require.NoError(t, err)

	mr.SetError("ERR server unavailable")
	assert.NotPanics(t, release)

	entries := logs.FilterMessage("Failed to release keyword lock").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["error"], "server unavailable")
	assert.Equal(t, "k", entries[0].ContextMap()["keyword"])

	// The lock stays until its ttl runs out.
	mr.SetError("")
	_, err = locker.Acquire(context.Background(), "k", false)
	assert.ErrorIs(t, err, monitoring.ErrLockHeld)
}

func TestRedisLocker_ExpiredLockIsLogged(t *testing.T) {
	mr, client := newMiniredisClient(t)
	core, logs := observer.New(zapcore.WarnLevel)
	locker := monitoring.NewRedisLocker(client, "test:", time.Second, logger.NewWithCore(core, "test"))

	release, err := locker.Acquire(context.Background(), "k", false)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	release()

	assert.Equal(t, 1, logs.FilterMessage("Keyword lock expired before release").Len())
	assert.Zero(t, logs.FilterMessage("Failed to release keyword lock").Len())
}
