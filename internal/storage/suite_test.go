package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backend is one Storage implementation under the shared suite. corrupt
// writes an undecodable state token for userID, bypassing validation.
type backend struct {
	store   Storage
	corrupt func(t *testing.T, userID string)
}

func runStorageSuite(t *testing.T, newBackend func(t *testing.T) backend) {
	t.Run("LoadMissing", func(t *testing.T) {
		b := newBackend(t)
		p, err := b.store.LoadProgress(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("InsertThenUpdate", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		now := time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC)

		p := progress.New("U1", now)
		require.NoError(t, b.store.SaveProgress(ctx, p))
		assert.Equal(t, int64(1), p.Version)

		p.State = progress.Answering("L01")
		p.LastActivityTime = now.Add(time.Minute)
		require.NoError(t, b.store.SaveProgress(ctx, p))
		assert.Equal(t, int64(2), p.Version)

		loaded, err := b.store.LoadProgress(ctx, "U1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "U1", loaded.UserID)
		assert.Equal(t, progress.Answering("L01"), loaded.State)
		assert.Equal(t, int64(2), loaded.Version)
		assert.True(t, loaded.LastActivityTime.Equal(now.Add(time.Minute)), "last activity %v", loaded.LastActivityTime)
		assert.True(t, loaded.CreatedAt.Equal(now), "created at %v", loaded.CreatedAt)
	})

	t.Run("StaleVersionConflicts", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		p := progress.New("U2", time.Now())
		require.NoError(t, b.store.SaveProgress(ctx, p))

		a, err := b.store.LoadProgress(ctx, "U2")
		require.NoError(t, err)
		stale, err := b.store.LoadProgress(ctx, "U2")
		require.NoError(t, err)

		a.State = progress.Answering("L01")
		require.NoError(t, b.store.SaveProgress(ctx, a))

		stale.State = progress.Completed()
		err = b.store.SaveProgress(ctx, stale)
		assert.ErrorIs(t, err, ErrVersionConflict)
		assert.Equal(t, int64(1), stale.Version)

		loaded, err := b.store.LoadProgress(ctx, "U2")
		require.NoError(t, err)
		assert.Equal(t, progress.Answering("L01"), loaded.State)
	})

	t.Run("DuplicateInsertConflicts", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		require.NoError(t, b.store.SaveProgress(ctx, progress.New("U3", time.Now())))
		err := b.store.SaveProgress(ctx, progress.New("U3", time.Now()))
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("ConcurrentWritersOneWins", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		require.NoError(t, b.store.SaveProgress(ctx, progress.New("U4", time.Now())))

		const writers = 8
		var wg sync.WaitGroup
		results := make(chan error, writers)
		for i := 0; i < writers; i++ {
			p, err := b.store.LoadProgress(ctx, "U4")
			require.NoError(t, err)
			wg.Add(1)
			go func(p *progress.UserProgress) {
				defer wg.Done()
				p.State = progress.Answering("L01")
				results <- b.store.SaveProgress(ctx, p)
			}(p)
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, ErrVersionConflict)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("CorruptState", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()
		b.corrupt(t, "U5")

		p, err := b.store.LoadProgress(ctx, "U5")
		assert.ErrorIs(t, err, progress.ErrUnrecognizedState)
		require.NotNil(t, p)
		assert.Equal(t, progress.KindUnknown, p.State.Kind)
		assert.NotZero(t, p.Version)

		// A reset is still writable over the corrupt record.
		p.State = progress.Welcome()
		require.NoError(t, b.store.SaveProgress(ctx, p))
		loaded, err := b.store.LoadProgress(ctx, "U5")
		require.NoError(t, err)
		assert.Equal(t, progress.Welcome(), loaded.State)
	})

	t.Run("RefusesUnknownState", func(t *testing.T) {
		b := newBackend(t)
		err := b.store.SaveProgress(context.Background(), &progress.UserProgress{UserID: "U6"})
		assert.ErrorIs(t, err, progress.ErrUnrecognizedState)
	})

	t.Run("UpsertLevels", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		first := []level.Level{
			{ID: "L01", QuestionText: "q1", CanonicalAnswer: "a1", TransitionText: "t1", NextLevelID: "L02"},
			{ID: "L02", QuestionText: "q2", CanonicalAnswer: "a2", QuestionImage: "https://img/2.jpg", NextLevelID: level.Completed},
		}
		n, err := b.store.UpsertLevels(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// Re-seeding only touches the ids given.
		n, err = b.store.UpsertLevels(ctx, []level.Level{
			{ID: "L02", QuestionText: "q2 v2", CanonicalAnswer: "a2", NextLevelID: level.Completed},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		levels, err := b.store.ListLevels(ctx)
		require.NoError(t, err)
		require.Len(t, levels, 2)
		assert.Equal(t, first[0], levels[0])
		assert.Equal(t, "L02", levels[1].ID)
		assert.Equal(t, "q2 v2", levels[1].QuestionText)
		assert.Empty(t, levels[1].QuestionImage)
	})

	t.Run("Ping", func(t *testing.T) {
		b := newBackend(t)
		assert.NoError(t, b.store.Ping(context.Background()))
	})
}
