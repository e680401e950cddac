package queue

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/hunt-engine/pkg/queue"
)

func setupTestQueue(t *testing.T) (*EventQueue, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	opt, err := redis.ParseURL("redis://" + mr.Addr())
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { rdb.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewEventQueue(rdb, logger), mr
}

func TestEventQueue_FIFO(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	first := queue.NewEvent(queue.EventTypeMessage, "U1")
	first.Text = "START"
	first.ReplyToken = "r1"
	second := queue.NewEvent(queue.EventTypeFollow, "U2")

	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Dispatch(ctx, second))

	depth, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.EventID, got.EventID)
	assert.Equal(t, "START", got.Text)
	assert.Equal(t, "r1", got.ReplyToken)
	assert.True(t, first.EnqueuedAt.Equal(got.EnqueuedAt))

	got, err = q.BlockingDequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, queue.EventTypeFollow, got.Type)
	assert.Equal(t, "U2", got.UserID)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventQueue_BlockingDequeueTimesOut(t *testing.T) {
	q, _ := setupTestQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := q.BlockingDequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEventQueue_UsesSharedKey(t *testing.T) {
	q, mr := setupTestQueue(t)
	require.NoError(t, q.Enqueue(context.Background(), queue.NewEvent(queue.EventTypeMessage, "U1")))

	items, err := mr.List(DefaultKey)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestEventQueue_RejectsGarbage(t *testing.T) {
	q, mr := setupTestQueue(t)
	_, err := mr.Push(DefaultKey, "not json")
	require.NoError(t, err)

	_, err = q.Dequeue(context.Background())
	assert.Error(t, err)
}

func TestEventQueue_RequeueGoesToHead(t *testing.T) {
	q, _ := setupTestQueue(t)
	ctx := context.Background()

	later := queue.NewEvent(queue.EventTypeMessage, "U1")
	later.Text = "到"
	require.NoError(t, q.Enqueue(ctx, later))

	first := queue.NewEvent(queue.EventTypeMessage, "U1")
	first.Text = "blue"
	require.NoError(t, q.Requeue(ctx, first))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "blue", got.Text)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "到", got.Text)
}
