package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/pkg/message"
)

// Player is the part of the engine the playtest endpoint drives.
type Player interface {
	HandleMessage(ctx context.Context, userID, text string) (*engine.Result, error)
	HandleFollow(ctx context.Context, userID string) (*engine.Result, error)
}

// PlayRequest is one simulated player event. Event is "message" (the
// default) or "follow".
type PlayRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message,omitempty"`
	Event   string `json:"event,omitempty"`
}

type PlayResponse struct {
	UserID        string              `json:"user_id"`
	PreviousState string              `json:"previous_state"`
	State         string              `json:"state"`
	Outcome       string              `json:"outcome"`
	Messages      []message.Directive `json:"messages"`
}

// PlayHandler runs events through the engine without LINE, returning the
// messages a player would have received.
type PlayHandler struct {
	engine Player
	logger *slog.Logger
}

func NewPlayHandler(engine Player, logger *slog.Logger) *PlayHandler {
	return &PlayHandler{
		engine: engine,
		logger: logger,
	}
}

// ServeHTTP handles POST /v1/play.
func (h *PlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid play request", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid JSON in request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "user_id is required")
		return
	}

	var res *engine.Result
	var err error
	switch req.Event {
	case "", "message":
		res, err = h.engine.HandleMessage(r.Context(), req.UserID, req.Message)
	case "follow":
		res, err = h.engine.HandleFollow(r.Context(), req.UserID)
	default:
		writeError(w, h.logger, http.StatusBadRequest, "event must be \"message\" or \"follow\"")
		return
	}

	status := http.StatusOK
	if err != nil {
		h.logger.Error("Play event failed", "user_id", req.UserID, "error", err)
		if !errors.Is(err, engine.ErrStoreUnavailable) || res == nil {
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to process event")
			return
		}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, status, toPlayResponse(res))
}

func toPlayResponse(res *engine.Result) PlayResponse {
	messages := res.Directives
	if messages == nil {
		messages = []message.Directive{}
	}
	return PlayResponse{
		UserID:        res.UserID,
		PreviousState: res.Previous.String(),
		State:         res.State.String(),
		Outcome:       string(res.Outcome),
		Messages:      messages,
	}
}
