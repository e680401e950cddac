package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/hunt-engine/pkg/level"
)

// LevelSummary is a level as the admin API shows it: everything but the
// answer.
type LevelSummary struct {
	ID              string `json:"id"`
	IntroText       string `json:"intro,omitempty"`
	QuestionText    string `json:"question"`
	QuestionImage   string `json:"question_image,omitempty"`
	TransitionText  string `json:"transition"`
	TransitionImage string `json:"transition_image,omitempty"`
	NextLevelID     string `json:"next"`
}

type LevelsResponse struct {
	Count  int            `json:"count"`
	Levels []LevelSummary `json:"levels"`
}

type LevelsHandler struct {
	catalog *level.Catalog
	logger  *slog.Logger
}

func NewLevelsHandler(catalog *level.Catalog, logger *slog.Logger) *LevelsHandler {
	return &LevelsHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// ServeHTTP handles GET /v1/levels and GET /v1/levels/{id}.
func (h *LevelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/levels"), "/")
	if id == "" {
		levels := h.catalog.Levels()
		resp := LevelsResponse{Count: len(levels), Levels: make([]LevelSummary, 0, len(levels))}
		for _, l := range levels {
			resp.Levels = append(resp.Levels, summarize(l))
		}
		writeJSON(w, h.logger, http.StatusOK, resp)
		return
	}

	l, err := h.catalog.Lookup(id)
	if errors.Is(err, level.ErrLevelNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "Level not found")
		return
	}
	if err != nil {
		h.logger.Error("Level lookup failed", "level_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Level lookup failed")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, summarize(l))
}

func summarize(l level.Level) LevelSummary {
	return LevelSummary{
		ID:              l.ID,
		IntroText:       l.IntroText,
		QuestionText:    l.QuestionText,
		QuestionImage:   l.QuestionImage,
		TransitionText:  l.TransitionText,
		TransitionImage: l.TransitionImage,
		NextLevelID:     l.NextLevelID,
	}
}
