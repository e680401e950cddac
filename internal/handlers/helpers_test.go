package handlers

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) *level.Catalog {
	t.Helper()
	cat, err := level.NewCatalog([]level.Level{
		{ID: "L01", QuestionText: "Q1", QuestionImage: "https://example.com/q1.jpg", CanonicalAnswer: "blue", TransitionText: "T1", NextLevelID: "L02"},
		{ID: "L02", QuestionText: "Q2", CanonicalAnswer: "red", TransitionText: "T2", NextLevelID: level.Completed},
	})
	require.NoError(t, err)
	return cat
}

func testEngine(t *testing.T, store *storage.MockStorage) *engine.Engine {
	t.Helper()
	e, err := engine.New(engine.Config{
		Catalog: testCatalog(t),
		Store:   store,
		Logger:  testLogger(),
	})
	require.NoError(t, err)
	return e
}
