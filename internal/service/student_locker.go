package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockTimeout indicates a recalculation lock could not be acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for recalculation lock")

// GlobalScoringLockKey guards full leaderboard rebuilds.
const GlobalScoringLockKey = "scoring:lock:all"

// StudentLockKey returns the lock key serializing recalculations of one student.
func StudentLockKey(studentID uint) string {
	return fmt.Sprintf("scoring:lock:student:%d", studentID)
}

// StudentLocker serializes recalculations that share a key.
type StudentLocker interface {
	Lock(ctx context.Context, key string, wait time.Duration) (unlock func(), err error)
}

const lockPollInterval = 25 * time.Millisecond

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker builds a lock shared by every API node. The TTL bounds how long
// a crashed holder can block others; a live holder renews it every ttl/3 until
// it releases.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "redis_locker").Logger(),
	}
}

func (l *redisLocker) Lock(ctx context.Context, key string, wait time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}

		timer := time.NewTimer(lockPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go l.keepAlive(key, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed

			// The request context may already be cancelled when the holder releases.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("failed to release recalculation lock")
			}
		})
	}, nil
}

// keepAlive extends the lock while it is held. It gives up once the token no
// longer owns the key.
func (l *redisLocker) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			owned, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.logger.Warn().Err(err).Str("key", key).Msg("failed to renew recalculation lock")
				continue
			}
			if owned == 0 {
				l.logger.Warn().Str("key", key).Msg("recalculation lock lost before release")
				return
			}
		}
	}
}

type localLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker builds an in-process lock for single node deployments and tests.
func NewLocalLocker() StudentLocker {
	return &localLocker{slots: make(map[string]chan struct{})}
}

func (l *localLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *localLocker) Lock(ctx context.Context, key string, wait time.Duration) (func(), error) {
	ch := l.slot(key)
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
