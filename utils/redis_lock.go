package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"train-booking/internal/status"
)

// Lua compare-and-delete so a lock holder never releases a lock that
// expired and was re-acquired by someone else.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// KeyLock is a per-key mutex on top of Redis SET NX. Every admission,
// cancellation and promotion for the same (train, date) serializes on one
// key; different keys never contend.
type KeyLock struct {
	redis   *redis.Client
	ttl     time.Duration
	maxWait time.Duration
}

func NewKeyLock(redisClient *redis.Client, ttl, maxWait time.Duration) *KeyLock {
	return &KeyLock{
		redis:   redisClient,
		ttl:     ttl,
		maxWait: maxWait,
	}
}

// Acquire blocks until the lock is held, the context is done, or maxWait
// elapses. It returns the token needed to release.
func (l *KeyLock) Acquire(ctx context.Context, key string) (string, error) {
	token, err := GenerateCode(16)
	if err != nil {
		return "", err
	}

	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.redis.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", status.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func (l *KeyLock) Release(ctx context.Context, key, token string) error {
	return l.redis.Eval(ctx, unlockScript, []string{key}, token).Err()
}
