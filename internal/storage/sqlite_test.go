package storage

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStorage(t *testing.T, path string) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(context.Background(), path, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage(t *testing.T) {
	runStorageSuite(t, func(t *testing.T) backend {
		s := newTestSQLiteStorage(t, filepath.Join(t.TempDir(), "hunt.db"))
		return backend{
			store: s,
			corrupt: func(t *testing.T, userID string) {
				_, err := s.db.Exec(`INSERT INTO users (user_id, current_state, last_activity_time, created_at, version)
					VALUES (?, 'L01_FINISHED', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z', 2)`, userID)
				require.NoError(t, err)
			},
		}
	})
}

func TestSQLiteStorage_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hunt.db")
	s := newTestSQLiteStorage(t, path)

	_, err := s.UpsertLevels(context.Background(), testLevels())
	require.NoError(t, err)
	version, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	require.NoError(t, s.Close())

	reopened := newTestSQLiteStorage(t, path)
	version, err = reopened.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	levels, err := reopened.ListLevels(context.Background())
	require.NoError(t, err)
	assert.Len(t, levels, 2)
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = parseMigrationVersion("init.sql")
	assert.Error(t, err)
}

func testLevels() []level.Level {
	return []level.Level{
		{ID: "L01", QuestionText: "q1", CanonicalAnswer: "a1", NextLevelID: "L02"},
		{ID: "L02", QuestionText: "q2", CanonicalAnswer: "a2", NextLevelID: level.Completed},
	}
}
