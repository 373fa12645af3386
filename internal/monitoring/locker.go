package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"rivalwatch/internal/logger"
	"rivalwatch/pkg/logging"
)

var ErrLockHeld = errors.New("keyword lock is held by another check")

// KeywordLocker serializes check cycles per keyword. With wait set, Acquire
// blocks until the lock is free or ctx is done; otherwise it fails fast
// with ErrLockHeld. The returned release func is safe to call twice.
type KeywordLocker interface {
	Acquire(ctx context.Context, keyword string, wait bool) (release func(), err error)
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// LocalLocker is an in-process KeywordLocker.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

func (l *LocalLocker) Acquire(ctx context.Context, keyword string, wait bool) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[keyword]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[keyword] = kl
	}
	kl.refs++
	l.mu.Unlock()

	if wait {
		select {
		case kl.sem <- struct{}{}:
		case <-ctx.Done():
			l.unref(keyword, kl)
			return nil, ctx.Err()
		}
	} else {
		select {
		case kl.sem <- struct{}{}:
		default:
			l.unref(keyword, kl)
			return nil, ErrLockHeld
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.sem
			l.unref(keyword, kl)
		})
	}, nil
}

func (l *LocalLocker) unref(keyword string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, keyword)
	}
}

var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

const redisLockPollInterval = 100 * time.Millisecond

// RedisLocker is a KeywordLocker shared by every replica pointing at the
// same Redis. The lock expires after ttl so a crashed holder cannot wedge a
// keyword forever.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	poll      time.Duration
	logger    logger.Logger
}

func NewRedisLocker(client redis.UniversalClient, keyPrefix string, ttl time.Duration, log logger.Logger) *RedisLocker {
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		poll:      redisLockPollInterval,
		logger:    log,
	}
}

func (l *RedisLocker) lockKey(keyword string) string {
	return fmt.Sprintf("%slock:%s", l.keyPrefix, url.QueryEscape(keyword))
}

func (l *RedisLocker) Acquire(ctx context.Context, keyword string, wait bool) (func(), error) {
	key := l.lockKey(keyword)
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock: %w", err)
		}
		if ok {
			break
		}
		if !wait {
			return nil, ErrLockHeld
		}

		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must outlive a cancelled request context.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			deleted, err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Int()
			switch {
			case err != nil:
				// The key still expires after ttl.
				l.logger.WarnwCtx(logging.WithKeyword(releaseCtx, keyword), "Failed to release keyword lock",
					"error", err, "ttl", l.ttl.String())
			case deleted == 0:
				l.logger.WarnwCtx(logging.WithKeyword(releaseCtx, keyword), "Keyword lock expired before release",
					"ttl", l.ttl.String())
			}
		})
	}, nil
}
