package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/internal/line"
	"github.com/jwebster45206/hunt-engine/internal/storage"
	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/message"
	"github.com/stretchr/testify/require"
)

type sent struct {
	Method string
	Target string
	Texts  []string
}

// fakeMessenger records deliveries. replyErr, when set, fails every
// reply; pushErr every push.
type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sent
	replyErr error
	pushErr  error
}

var _ line.Messenger = (*fakeMessenger)(nil)

func (f *fakeMessenger) record(method, target string, ds []message.Directive) {
	var texts []string
	for _, d := range ds {
		if d.Kind == message.KindText {
			texts = append(texts, d.Text)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{Method: method, Target: target, Texts: texts})
}

func (f *fakeMessenger) Reply(ctx context.Context, token string, ds []message.Directive) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.record("reply", token, ds)
	return nil
}

func (f *fakeMessenger) Push(ctx context.Context, userID string, ds []message.Directive) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.record("push", userID, ds)
	return nil
}

func (f *fakeMessenger) deliveries() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, store *storage.MockStorage) *engine.Engine {
	t.Helper()
	cat, err := level.NewCatalog([]level.Level{
		{ID: "L01", QuestionText: "Q1", CanonicalAnswer: "blue", TransitionText: "T1", NextLevelID: "L02"},
		{ID: "L02", QuestionText: "Q2", CanonicalAnswer: "red", TransitionText: "T2", NextLevelID: level.Completed},
	})
	require.NoError(t, err)
	e, err := engine.New(engine.Config{
		Catalog: cat,
		Store:   store,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)
	return e
}
