package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/hunt-engine/pkg/queue"
)

// DefaultKey is the Redis list inbound events are queued on.
const DefaultKey = "hunt:events"

// EventQueue is a FIFO of player events on a Redis list, shared by the
// webhook (producer) and the workers (consumers).
type EventQueue struct {
	rdb    *redis.Client
	key    string
	logger *slog.Logger
}

func NewEventQueue(rdb *redis.Client, logger *slog.Logger) *EventQueue {
	return &EventQueue{
		rdb:    rdb,
		key:    DefaultKey,
		logger: logger,
	}
}

// Enqueue adds an event to the end of the queue
func (q *EventQueue) Enqueue(ctx context.Context, ev *queue.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue event: %w", err)
	}
	return nil
}

// Requeue puts an event back at the head of the queue, ahead of anything
// queued after it.
func (q *EventQueue) Requeue(ctx context.Context, ev *queue.Event) error {
	data, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to requeue event: %w", err)
	}
	return nil
}

// Dispatch queues ev for a worker.
func (q *EventQueue) Dispatch(ctx context.Context, ev *queue.Event) error {
	if err := q.Enqueue(ctx, ev); err != nil {
		return err
	}
	q.logger.Debug("Event queued", "event_id", ev.EventID, "user_id", ev.UserID, "type", ev.Type)
	return nil
}

// Dequeue removes and returns the next event. Returns nil if the queue is
// empty.
func (q *EventQueue) Dequeue(ctx context.Context) (*queue.Event, error) {
	result, err := q.rdb.LPop(ctx, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue event: %w", err)
	}
	return parse(result)
}

// BlockingDequeue waits up to timeout for an event. Returns nil when the
// timeout elapses with the queue still empty.
func (q *EventQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*queue.Event, error) {
	result, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue event: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}
	return parse(result[1])
}

func parse(data string) (*queue.Event, error) {
	ev, err := queue.FromJSON([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return ev, nil
}

// Depth returns the number of queued events
func (q *EventQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.rdb.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
