package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLockHeld is returned when another worker holds the lock.
var ErrLockHeld = errors.New("lock held by another worker")

// releaseLockScript deletes the key only if it still carries our token, so a
// worker whose lock expired cannot release a lock taken over by someone else.
const releaseLockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`

// RedisTickLock is a best-effort mutual exclusion for the reminder tick
// across server replicas.
type RedisTickLock struct {
	redis RedisClient
	key   string
	ttl   time.Duration
	token func() string
}

func NewRedisTickLock(redis RedisClient, key string, ttl time.Duration) *RedisTickLock {
	return &RedisTickLock{
		redis: redis,
		key:   key,
		ttl:   ttl,
		token: func() string { return uuid.NewString() },
	}
}

// Acquire takes the lock and returns a release func. It returns ErrLockHeld
// when the lock is already taken.
func (l *RedisTickLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := l.token()
	ok, err := l.redis.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if _, err := l.redis.Eval(ctx, releaseLockScript, []string{l.key}, token); err != nil {
			return fmt.Errorf("release lock %s: %w", l.key, err)
		}
		return nil
	}
	return release, nil
}
