package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockers(t *testing.T) (*RedisLocker, *RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "worker-a", time.Minute), NewRedisLocker(client, "worker-b", time.Minute), mr
}

func TestRedisLocker_TryLock(t *testing.T) {
	a, b, mr := newTestLockers(t)
	ctx := context.Background()

	unlock, err := a.TryLock(ctx, "U1")
	require.NoError(t, err)

	owner, err := mr.Get(lockKeyPrefix + "U1")
	require.NoError(t, err)
	assert.Equal(t, "worker-a", owner)

	_, err = b.TryLock(ctx, "U1")
	assert.ErrorIs(t, err, ErrLocked)

	// Other keys are independent.
	unlockOther, err := b.TryLock(ctx, "U2")
	require.NoError(t, err)
	unlockOther()

	unlock()
	assert.False(t, mr.Exists(lockKeyPrefix+"U1"))

	unlock, err = b.TryLock(ctx, "U1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_ReleaseOnlyOwnLock(t *testing.T) {
	a, b, mr := newTestLockers(t)
	ctx := context.Background()

	unlockA, err := a.TryLock(ctx, "U1")
	require.NoError(t, err)

	// a's lock expires and b takes the key.
	mr.FastForward(2 * time.Minute)
	unlockB, err := b.TryLock(ctx, "U1")
	require.NoError(t, err)

	unlockA()
	owner, err := mr.Get(lockKeyPrefix + "U1")
	require.NoError(t, err)
	assert.Equal(t, "worker-b", owner)
	unlockB()
}

func TestRedisLocker_LockWaitsForRelease(t *testing.T) {
	a, b, _ := newTestLockers(t)
	ctx := context.Background()

	unlockA, err := a.TryLock(ctx, "U1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		unlock, err := b.Lock(ctx, "U1")
		if err == nil {
			unlock()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(150 * time.Millisecond):
	}

	unlockA()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock not acquired after release")
	}
}

func TestRedisLocker_LockHonorsContext(t *testing.T) {
	a, b, _ := newTestLockers(t)

	unlock, err := a.TryLock(context.Background(), "U1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = b.Lock(ctx, "U1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
