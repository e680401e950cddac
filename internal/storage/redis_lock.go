package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix    = "user-lock:"
	DefaultLockTTL   = 30 * time.Second
	lockPollInterval = 50 * time.Millisecond
)

// ErrLocked is returned by TryLock when another owner holds the key.
var ErrLocked = errors.New("key is locked")

// Only delete if we own the lock
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker is a per-key lock shared by every process using the same
// Redis. Locks expire after TTL so a crashed owner cannot hold a user
// forever.
type RedisLocker struct {
	client *redis.Client
	owner  string
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, owner string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, owner: owner, ttl: ttl}
}

// TryLock takes the lock without waiting. It returns ErrLocked when the
// key is held.
func (l *RedisLocker) TryLock(ctx context.Context, key string) (func(), error) {
	lockKey := lockKeyPrefix + key
	ok, err := l.client.SetNX(ctx, lockKey, l.owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// The caller's context may already be done.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{lockKey}, l.owner).Err()
	}, nil
}

// Lock polls until the key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()
	for {
		unlock, err := l.TryLock(ctx, key)
		if !errors.Is(err, ErrLocked) {
			return unlock, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}
