package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/internal/line"
	"github.com/jwebster45206/hunt-engine/internal/metrics"
	"github.com/jwebster45206/hunt-engine/pkg/message"
	"github.com/jwebster45206/hunt-engine/pkg/queue"
)

// deliveryTimeout bounds one reply or push, retries included.
const deliveryTimeout = 15 * time.Second

// EventHandler is the part of the engine the processor drives.
type EventHandler interface {
	HandleMessage(ctx context.Context, userID, text string) (*engine.Result, error)
	HandleFollow(ctx context.Context, userID string) (*engine.Result, error)
}

// Processor applies one event to the engine and delivers the resulting
// messages. It's used by both the webhook handler (synchronously) and the
// worker (asynchronously).
type Processor struct {
	engine    EventHandler
	messenger line.Messenger
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewProcessor(engine EventHandler, messenger line.Messenger, m *metrics.Metrics, logger *slog.Logger) *Processor {
	return &Processor{
		engine:    engine,
		messenger: messenger,
		metrics:   m,
		logger:    logger,
	}
}

// Dispatch processes ev before returning.
func (p *Processor) Dispatch(ctx context.Context, ev *queue.Event) error {
	return p.Process(ctx, ev)
}

// Process runs ev through the engine and sends whatever it produced, even
// when the engine failed (the player then gets the transient-failure
// notice). The returned error joins the engine and delivery failures.
func (p *Processor) Process(ctx context.Context, ev *queue.Event) error {
	log := p.logger.With("event_id", ev.EventID, "user_id", ev.UserID, "type", ev.Type)

	var res *engine.Result
	var err error
	switch ev.Type {
	case queue.EventTypeMessage:
		res, err = p.engine.HandleMessage(ctx, ev.UserID, ev.Text)
	case queue.EventTypeFollow:
		res, err = p.engine.HandleFollow(ctx, ev.UserID)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	var deliverErr error
	if res != nil && len(res.Directives) > 0 {
		deliverErr = p.deliver(ctx, log, ev, res.Directives)
	}

	if err != nil {
		return errors.Join(err, deliverErr)
	}
	log.Info("Event processed", "outcome", res.Outcome, "state", res.State.String())
	return deliverErr
}

// deliver replies when the event still has a reply token and pushes
// otherwise, or when LINE rejects the token.
func (p *Processor) deliver(ctx context.Context, log *slog.Logger, ev *queue.Event, directives []message.Directive) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()

	if ev.ReplyToken != "" {
		err := p.messenger.Reply(ctx, ev.ReplyToken, directives)
		p.metrics.ObserveDelivery("reply", err)
		if err == nil {
			return nil
		}
		if !line.IsInvalidReplyToken(err) {
			log.Error("Failed to send reply", "error", err)
			return fmt.Errorf("reply to %s: %w", ev.UserID, err)
		}
		log.Info("Reply token rejected, pushing instead")
	}

	err := p.messenger.Push(ctx, ev.UserID, directives)
	p.metrics.ObserveDelivery("push", err)
	if err != nil {
		log.Error("Failed to push messages", "error", err)
		return fmt.Errorf("push to %s: %w", ev.UserID, err)
	}
	return nil
}
