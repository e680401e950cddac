package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/progress"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// SQLiteStorage is a single-file store for local play and small
// deployments. It uses the same schema as PostgresStorage.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (creating if needed) the database at path and
// applies pending migrations.
func NewSQLiteStorage(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies the embedded migrations newer than the recorded schema
// version, one transaction per file.
func (s *SQLiteStorage) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.Version(ctx)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	entries, err := fs.ReadDir(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		version, err := parseMigrationVersion(name)
		if err != nil {
			s.logger.Warn("Skipping non-migration file", "name", name, "error", err)
			continue
		}
		if version <= current {
			continue
		}

		data, err := fs.ReadFile(sqliteMigrations, "migrations/sqlite/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
		s.logger.Info("Applied migration", "name", name, "version", version)
	}
	return nil
}

// Version returns the current schema version.
func (s *SQLiteStorage) Version(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	return version, err
}

// parseMigrationVersion extracts the number from a name like "001_init.sql".
func parseMigrationVersion(name string) (int, error) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, fmt.Errorf("invalid migration filename: %s", name)
	}
	var version int
	if _, err := fmt.Sscanf(prefix, "%d", &version); err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return version, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) LoadProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	var rec progressRecord
	var lastActivity, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_state, last_activity_time, created_at, version
		FROM users WHERE user_id = ?`, userID,
	).Scan(&rec.UserID, &rec.State, &lastActivity, &createdAt, &rec.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.logger.Error("Failed to load progress", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	if rec.LastActivityTime, err = time.Parse(time.RFC3339Nano, lastActivity); err != nil {
		return nil, fmt.Errorf("failed to parse last_activity_time: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return rec.progress()
}

func (s *SQLiteStorage) SaveProgress(ctx context.Context, p *progress.UserProgress) error {
	rec, err := recordOf(p)
	if err != nil {
		return err
	}
	lastActivity := rec.LastActivityTime.Format(time.RFC3339Nano)

	var res sql.Result
	if p.Version == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO users (user_id, current_state, last_activity_time, created_at, version)
			VALUES (?, ?, ?, ?, 1)
			ON CONFLICT (user_id) DO NOTHING`,
			rec.UserID, rec.State, lastActivity, rec.CreatedAt.Format(time.RFC3339Nano))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE users
			SET current_state = ?, last_activity_time = ?, version = version + 1
			WHERE user_id = ? AND version = ?`,
			rec.State, lastActivity, rec.UserID, p.Version)
	}
	if err != nil {
		s.logger.Error("Failed to save progress", "user_id", p.UserID, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s at version %d", ErrVersionConflict, p.UserID, p.Version)
	}
	p.Version++
	return nil
}

func (s *SQLiteStorage) UpsertLevels(ctx context.Context, levels []level.Level) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin level upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO levels (level_id, intro_text, question_text, question_image, canonical_answer,
			transition_text, transition_image, next_level_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (level_id) DO UPDATE SET
			intro_text = excluded.intro_text,
			question_text = excluded.question_text,
			question_image = excluded.question_image,
			canonical_answer = excluded.canonical_answer,
			transition_text = excluded.transition_text,
			transition_image = excluded.transition_image,
			next_level_id = excluded.next_level_id,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare level upsert: %w", err)
	}
	defer stmt.Close()

	for _, l := range levels {
		if _, err := stmt.ExecContext(ctx, l.ID, l.IntroText, l.QuestionText, l.QuestionImage, l.CanonicalAnswer,
			l.TransitionText, l.TransitionImage, l.NextLevelID); err != nil {
			return 0, fmt.Errorf("failed to upsert level %s: %w", l.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit level upsert: %w", err)
	}
	return len(levels), nil
}

func (s *SQLiteStorage) ListLevels(ctx context.Context) ([]level.Level, error) {
	rows, err := s.db.QueryContext(ctx, `
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
