package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/internal/line"
	"github.com/jwebster45206/hunt-engine/pkg/queue"
)

// Dispatcher hands a player event to whatever applies it: the processor
// directly, or the queue for a worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *queue.Event) error
}

type WebhookHandler struct {
	secret     string
	dispatcher Dispatcher
	logger     *slog.Logger
}

func NewWebhookHandler(secret string, dispatcher Dispatcher, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		secret:     secret,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// ServeHTTP handles POST /callback from the LINE platform.
//
// A bad signature or body is answered with 400. When the progress store is
// down the handler answers 500 so LINE redelivers; any other per-event
// failure is logged and the webhook still succeeds.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	events, err := line.ParseRequest(h.secret, r)
	switch {
	case errors.Is(err, line.ErrInvalidSignature):
		h.logger.Warn("Rejected webhook with invalid signature", "remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid signature")
		return
	case err != nil:
		h.logger.Warn("Rejected malformed webhook", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Malformed webhook body")
		return
	}

	storeDown := false
	for _, le := range events {
		ev := toQueueEvent(le)
		log := h.logger.With("user_id", ev.UserID, "type", ev.Type, "webhook_id", le.WebhookID)
		if le.Redelivery {
			log.Info("Handling redelivered webhook event")
		}

		if err := h.dispatcher.Dispatch(r.Context(), ev); err != nil {
			if errors.Is(err, engine.ErrStoreUnavailable) {
				storeDown = true
			}
			log.Error("Failed to handle webhook event", "error", err)
		}
	}

	if storeDown {
		writeError(w, h.logger, http.StatusInternalServerError, "Progress store unavailable")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func toQueueEvent(le line.Event) *queue.Event {
	t := queue.EventTypeMessage
	if le.Type == line.EventFollow {
		t = queue.EventTypeFollow
	}
	ev := queue.NewEvent(t, le.UserID)
	ev.Text = le.Text
	ev.ReplyToken = le.ReplyToken
	ev.WebhookID = le.WebhookID
	return ev
}
