package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

// PostgresStorage keeps progress in the users table and levels in the
// levels table.
type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage connects, applies pending migrations and verifies
// the connection.
func NewPostgresStorage(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStorage, error) {
	if err := MigratePostgres(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	s := &PostgresStorage{pool: pool, logger: logger}
	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("Postgres connection established")
	return s, nil
}

// MigratePostgres applies the embedded schema migrations.
func MigratePostgres(databaseURL string) error {
	sqlDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open postgres for migrations: %w", err)
	}
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	s.logger.Info("Postgres connection closed")
	return nil
}

func (s *PostgresStorage) LoadProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	var rec progressRecord
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, current_state, last_activity_time, created_at, version
		FROM users WHERE user_id = $1`, userID,
	).Scan(&rec.UserID, &rec.State, &rec.LastActivityTime, &rec.CreatedAt, &rec.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		s.logger.Error("Failed to load progress", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return rec.progress()
}

func (s *PostgresStorage) SaveProgress(ctx context.Context, p *progress.UserProgress) error {
	rec, err := recordOf(p)
	if err != nil {
		return err
	}

	var query string
	var args []any
	if p.Version == 0 {
		query = `
			INSERT INTO users (user_id, current_state, last_activity_time, created_at, version)
			VALUES ($1, $2, $3, $4, 1)
			ON CONFLICT (user_id) DO NOTHING`
		args = []any{rec.UserID, rec.State, rec.LastActivityTime, rec.CreatedAt}
	} else {
		query = `
			UPDATE users
			SET current_state = $2, last_activity_time = $3, version = version + 1
			WHERE user_id = $1 AND version = $4`
		args = []any{rec.UserID, rec.State, rec.LastActivityTime, p.Version}
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to save progress", "user_id", p.UserID, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s at version %d", ErrVersionConflict, p.UserID, p.Version)
	}
	p.Version++
	return nil
}

func (s *PostgresStorage) UpsertLevels(ctx context.Context, levels []level.Level) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin level upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, l := range levels {
		batch.Queue(`
			INSERT INTO levels (level_id, intro_text, question_text, question_image, canonical_answer,
				transition_text, transition_image, next_level_id, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
			ON CONFLICT (level_id) DO UPDATE SET
				intro_text = EXCLUDED.intro_text,
				question_text = EXCLUDED.question_text,
				question_image = EXCLUDED.question_image,
				canonical_answer = EXCLUDED.canonical_answer,
				transition_text = EXCLUDED.transition_text,
				transition_image = EXCLUDED.transition_image,
				next_level_id = EXCLUDED.next_level_id,
				updated_at = now()`,
			l.ID, l.IntroText, l.QuestionText, l.QuestionImage, l.CanonicalAnswer,
			l.TransitionText, l.TransitionImage, l.NextLevelID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to upsert levels: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit level upsert: %w", err)
	}
	return len(levels), nil
}

func (s *PostgresStorage) ListLevels(ctx context.Context) ([]level.Level, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT level_id, intro_text, question_text, question_image, canonical_answer,
			transition_text, transition_image, next_level_id
		FROM levels ORDER BY level_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	defer rows.Close()

	var levels []level.Level
	for rows.Next() {
		var l level.Level
		if err := rows.Scan(&l.ID, &l.IntroText, &l.QuestionText, &l.QuestionImage, &l.CanonicalAnswer,
			&l.TransitionText, &l.TransitionImage, &l.NextLevelID); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	return levels, nil
}
