package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/hunt-engine/internal/queue"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	queuePkg "github.com/jwebster45206/hunt-engine/pkg/queue"
)

const (
	workerTimeout = 5 * time.Second
	// defaultLockWait outlasts the lock TTL, so a crashed holder's lock
	// expires before the wait gives up.
	defaultLockWait = storage.DefaultLockTTL + 5*time.Second
)

// UserLocker takes a per-user lock, waiting until it is free or ctx is
// done.
type UserLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Worker processes events from the shared queue
type Worker struct {
	id        string
	queue     *queue.EventQueue
	processor *Processor
	locker    UserLocker
	lockWait  time.Duration
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// New creates a new worker instance
func New(eventQueue *queue.EventQueue, processor *Processor, locker UserLocker, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = NewID()
	}

	return &Worker{
		id:        workerID,
		queue:     eventQueue,
		processor: processor,
		locker:    locker,
		lockWait:  defaultLockWait,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// NewID returns a worker id for lock ownership.
func NewID() string {
	return fmt.Sprintf("worker-%s", uuid.New().String()[:8])
}

func (w *Worker) ID() string { return w.id }

// Start begins processing events from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextEvent(); err != nil {
				w.log.Error("Error processing event", "error", err, "worker_id", w.id)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextEvent pulls the next event from the queue and processes it
func (w *Worker) processNextEvent() error {
	ev, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue event: %w", err)
	}
	if ev == nil {
		// Queue is empty or timeout occurred - this is normal
		return nil
	}
	return w.handle(ev)
}

func (w *Worker) handle(ev *queuePkg.Event) error {
	w.log.Debug("Received event from queue",
		"worker_id", w.id,
		"event_id", ev.EventID,
		"type", ev.Type,
		"user_id", ev.UserID,
	)

	// A user's events apply in queue order, so wait for the lock here
	// instead of sending the event to the back of the queue.
	lockCtx, cancel := context.WithTimeout(w.ctx, w.lockWait)
	unlock, err := w.locker.Lock(lockCtx, ev.UserID)
	cancel()
	switch {
	case err == nil:
		defer unlock()
	case w.ctx.Err() != nil:
		return w.putBack(ev)
	case errors.Is(err, context.DeadlineExceeded):
		w.log.Warn("User still locked, processing anyway",
			"worker_id", w.id,
			"event_id", ev.EventID,
			"user_id", ev.UserID,
		)
	default:
		return fmt.Errorf("failed to acquire user lock: %w", err)
	}

	start := time.Now()
	if err := w.processor.Process(w.ctx, ev); err != nil {
		return fmt.Errorf("event %s: %w", ev.EventID, err)
	}
	w.log.Info("Event processed successfully",
		"worker_id", w.id,
		"event_id", ev.EventID,
		"queued_ms", start.Sub(ev.EnqueuedAt).Milliseconds(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// putBack returns an event taken during shutdown to the head of the queue.
func (w *Worker) putBack(ev *queuePkg.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev.Requeues++
	if err := w.queue.Requeue(ctx, ev); err != nil {
		return fmt.Errorf("failed to return event %s to the queue: %w", ev.EventID, err)
	}
	w.log.Info("Worker stopping, event returned to the queue",
		"worker_id", w.id,
		"event_id", ev.EventID,
		"user_id", ev.UserID,
	)
	return nil
}
