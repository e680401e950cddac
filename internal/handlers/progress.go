package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

// ProgressManager reads and resets player progress.
type ProgressManager interface {
	Progress(ctx context.Context, userID string) (*progress.UserProgress, error)
	Reset(ctx context.Context, userID string) (*engine.Result, error)
}

type ProgressResponse struct {
	UserID           string    `json:"user_id"`
	State            string    `json:"state"`
	Corrupt          bool      `json:"corrupt,omitempty"`
	LastActivityTime time.Time `json:"last_activity_time"`
	CreatedAt        time.Time `json:"created_at"`
	Version          int64     `json:"version"`
}

type ProgressHandler struct {
	manager ProgressManager
	logger  *slog.Logger
}

func NewProgressHandler(manager ProgressManager, logger *slog.Logger) *ProgressHandler {
	return &ProgressHandler{
		manager: manager,
		logger:  logger,
	}
}

// ServeHTTP handles player progress.
// Routes:
// GET /v1/progress/{user_id}    - Read a player's progress
// DELETE /v1/progress/{user_id} - Reset a player to the welcome state
func (h *ProgressHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/progress"), "/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Player user id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleRead(w, r, userID)
	case http.MethodDelete:
		h.handleReset(w, r, userID)
	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Supported methods: GET, DELETE")
	}
}

func (h *ProgressHandler) handleRead(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := h.manager.Progress(r.Context(), userID)
	corrupt := errors.Is(err, progress.ErrUnrecognizedState)
	if err != nil && !corrupt {
		h.logger.Error("Failed to load progress", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Progress store unavailable")
		return
	}
	if p == nil {
		writeError(w, h.logger, http.StatusNotFound, "No progress for this player")
		return
	}
	if corrupt {
		h.logger.Warn("Stored progress is corrupt", "user_id", userID, "error", err)
	}

	writeJSON(w, h.logger, http.StatusOK, ProgressResponse{
		UserID:           p.UserID,
		State:            p.State.String(),
		Corrupt:          corrupt,
		LastActivityTime: p.LastActivityTime,
		CreatedAt:        p.CreatedAt,
		Version:          p.Version,
	})
}

func (h *ProgressHandler) handleReset(w http.ResponseWriter, r *http.Request, userID string) {
	res, err := h.manager.Reset(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to reset progress", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Progress store unavailable")
		return
	}
	h.logger.Info("Progress reset", "user_id", userID, "from", res.Previous.String())
	writeJSON(w, h.logger, http.StatusOK, toPlayResponse(res))
}
