package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/internal/handlers"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/message"
)

func newTestAPI(t *testing.T) *APIClient {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.NewMockStorage()

	cat, err := level.NewCatalog([]level.Level{
		{ID: "L01", QuestionText: "Q1", QuestionImage: "https://example.com/q1.jpg", CanonicalAnswer: "blue", TransitionText: "T1", NextLevelID: level.Completed},
	})
	require.NoError(t, err)
	eng, err := engine.New(engine.Config{Catalog: cat, Store: store, Logger: log})
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.Handle("/health", handlers.NewHealthHandler(map[string]handlers.Pinger{"store": store}, log))
	mux.Handle("/v1/play", handlers.NewPlayHandler(eng, log))
	mux.Handle("/v1/progress/", handlers.NewProgressHandler(eng, log))
	mux.Handle("/v1/levels", handlers.NewLevelsHandler(cat, log))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.Client(), srv.URL)
}

func TestAPIClient_PlaySession(t *testing.T) {
	api := newTestAPI(t)
	require.True(t, api.testConnection())

	_, err := api.getProgress("U1")
	assert.ErrorIs(t, err, errNoProgress)

	resp, err := api.play("U1", "follow", "")
	require.NoError(t, err)
	assert.Equal(t, "welcome", resp.Outcome)

	resp, err = api.play("U1", "", "開始")
	require.NoError(t, err)
	assert.Equal(t, "L01_ANSWERING", resp.State)

	lines := renderDirectives(resp.Messages)
	require.NotEmpty(t, lines)
	assert.Equal(t, "[image] https://example.com/q1.jpg", lines[len(lines)-1].text)

	p, err := api.getProgress("U1")
	require.NoError(t, err)
	assert.Equal(t, "L01_ANSWERING", p.State)

	resp, err = api.resetProgress("U1")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME", resp.State)

	levels, err := api.listLevels()
	require.NoError(t, err)
	assert.Equal(t, 1, levels.Count)
}

func TestAPIClient_ErrorMessage(t *testing.T) {
	api := newTestAPI(t)

	_, err := api.play("", "", "hi")
	assert.ErrorContains(t, err, "user_id is required")
}

func TestRenderDirectives(t *testing.T) {
	lines := renderDirectives([]message.Directive{message.Text("hello"), message.Image("https://x/y.png")})
	assert.Equal(t, []chatLine{
		{from: speakerBot, text: "hello"},
		{from: speakerBot, text: "[image] https://x/y.png"},
	}, lines)
}
