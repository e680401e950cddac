//go:build integration

package storage

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("hunt_test"),
		postgres.WithUsername("hunt"),
		postgres.WithPassword("hunt"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func TestPostgresStorage(t *testing.T) {
	dsn := startPostgres(t)

	runStorageSuite(t, func(t *testing.T) backend {
		s, err := NewPostgresStorage(context.Background(), dsn, slog.Default())
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })

		// Subtests share one database; start each from empty tables.
		_, err = s.pool.Exec(context.Background(), `TRUNCATE users, levels`)
		require.NoError(t, err)

		return backend{
			store: s,
			corrupt: func(t *testing.T, userID string) {
				_, err := s.pool.Exec(context.Background(), `
					INSERT INTO users (user_id, current_state, last_activity_time, created_at, version)
					VALUES ($1, 'nonsense', now(), now(), 4)`, userID)
				require.NoError(t, err)
			},
		}
	})
}

func TestMigratePostgres_Idempotent(t *testing.T) {
	dsn := startPostgres(t)
	require.NoError(t, MigratePostgres(dsn))
	require.NoError(t, MigratePostgres(dsn))
}
