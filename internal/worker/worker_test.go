package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/hunt-engine/internal/queue"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

type workerFixture struct {
	worker *Worker
	queue  *queue.EventQueue
	store  *storage.MockStorage
	fm     *fakeMessenger
	rdb    *redis.Client
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := storage.NewMockStorage()
	fm := &fakeMessenger{}
	q := queue.NewEventQueue(rdb, discardLogger())
	p := NewProcessor(newTestEngine(t, store), fm, nil, discardLogger())
	w := New(q, p, storage.NewRedisLocker(rdb, "worker-test", time.Minute), discardLogger(), "")

	return &workerFixture{worker: w, queue: q, store: store, fm: fm, rdb: rdb}
}

func TestWorker_GeneratesID(t *testing.T) {
	f := newWorkerFixture(t)
	assert.Regexp(t, `^worker-[0-9a-f]{8}$`, f.worker.ID())
}

func TestWorker_ProcessesQueueInOrder(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	for _, text := range []string{"START", "blue", "到"} {
		require.NoError(t, f.queue.Enqueue(ctx, messageEvent("U1", text, "")))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, f.worker.processNextEvent())
	}

	p, err := f.store.LoadProgress(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, progress.Answering("L02"), p.State)
	assert.Len(t, f.fm.deliveries(), 3)

	depth, err := f.queue.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestWorker_WaitsForLockedUserInOrder(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.queue.Enqueue(ctx, messageEvent("U1", "START", "")))
	require.NoError(t, f.worker.processNextEvent())

	other := storage.NewRedisLocker(f.rdb, "other-worker", time.Minute)
	unlock, err := other.TryLock(ctx, "U1")
	require.NoError(t, err)

	for _, text := range []string{"blue", "到"} {
		require.NoError(t, f.queue.Enqueue(ctx, messageEvent("U1", text, "")))
	}

	done := make(chan error, 1)
	go func() { done <- f.worker.processNextEvent() }()

	// "blue" is held by the worker while it waits, not sent to the back
	require.Eventually(t, func() bool {
		depth, err := f.queue.Depth(ctx)
		return err == nil && depth == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Len(t, f.fm.deliveries(), 1)

	unlock()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not take the lock after release")
	}
	require.NoError(t, f.worker.processNextEvent())

	p, err := f.store.LoadProgress(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, progress.Answering("L02"), p.State)
	assert.Len(t, f.fm.deliveries(), 3)
}

func TestWorker_ProcessesAfterLockWaitExpires(t *testing.T) {
	f := newWorkerFixture(t)
	f.worker.lockWait = 100 * time.Millisecond
	ctx := context.Background()

	other := storage.NewRedisLocker(f.rdb, "other-worker", time.Minute)
	_, err := other.TryLock(ctx, "U1")
	require.NoError(t, err)

	require.NoError(t, f.queue.Enqueue(ctx, messageEvent("U1", "START", "")))
	require.NoError(t, f.worker.processNextEvent())

	assert.Len(t, f.fm.deliveries(), 1)
	p, err := f.store.LoadProgress(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, progress.Answering("L01"), p.State)
}

func TestWorker_StopReturnsWaitingEventToHead(t *testing.T) {
	f := newWorkerFixture(t)
	ctx := context.Background()

	other := storage.NewRedisLocker(f.rdb, "other-worker", time.Minute)
	_, err := other.TryLock(ctx, "U1")
	require.NoError(t, err)

	first := messageEvent("U1", "START", "")
	require.NoError(t, f.queue.Enqueue(ctx, first))
	require.NoError(t, f.queue.Enqueue(ctx, messageEvent("U1", "blue", "")))

	done := make(chan error, 1)
	go func() { done <- f.worker.processNextEvent() }()

	require.Eventually(t, func() bool {
		depth, err := f.queue.Depth(ctx)
		return err == nil && depth == 1
	}, 3*time.Second, 10*time.Millisecond)
	f.worker.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop waiting")
	}
	assert.Empty(t, f.fm.deliveries())

	ev, err := f.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, first.EventID, ev.EventID)
	assert.Equal(t, 1, ev.Requeues)

	ev, err = f.queue.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, "blue", ev.Text)
}

func TestWorker_StartAndStop(t *testing.T) {
	f := newWorkerFixture(t)
	require.NoError(t, f.queue.Enqueue(context.Background(), messageEvent("U1", "START", "")))

	done := make(chan error, 1)
	go func() { done <- f.worker.Start() }()

	require.Eventually(t, func() bool { return len(f.fm.deliveries()) == 1 }, 3*time.Second, 20*time.Millisecond)
	f.worker.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop")
	}
}
