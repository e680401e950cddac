package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/hunt-engine/internal/config"
	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

// ErrVersionConflict is returned by SaveProgress when the stored record
// was written by someone else since it was loaded.
var ErrVersionConflict = errors.New("progress version conflict")

// Storage persists player progress and the level table.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// LoadProgress returns nil, nil when the user has no record. When the
	// stored state token cannot be decoded the record is returned with a
	// zero State alongside an error wrapping progress.ErrUnrecognizedState.
	LoadProgress(ctx context.Context, userID string) (*progress.UserProgress, error)
	// SaveProgress inserts the record when p.Version is 0 and otherwise
	// replaces it only if the stored version still equals p.Version. On
	// success p.Version is incremented.
	SaveProgress(ctx context.Context, p *progress.UserProgress) error

	// UpsertLevels writes the given levels, leaving other stored ids
	// untouched, and returns how many were written.
	UpsertLevels(ctx context.Context, levels []level.Level) (int, error)
	// ListLevels returns the stored levels ordered by id.
	ListLevels(ctx context.Context) ([]level.Level, error)
}

// Open connects to the backend named by cfg.StoreBackend.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Storage, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		s := NewRedisStorage(cfg.RedisURL, logger)
		if err := s.WaitForConnection(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case config.BackendPostgres:
		return NewPostgresStorage(ctx, cfg.DatabaseURL, logger)
	case config.BackendSQLite:
		return NewSQLiteStorage(ctx, cfg.SQLitePath, logger)
	case config.BackendMemory:
		return NewMockStorage(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// progressRecord is the stored shape of a UserProgress, with the state
// kept as its raw token so corrupt values can be reported.
type progressRecord struct {
	UserID           string    `json:"user_id"`
	State            string    `json:"state"`
	LastActivityTime time.Time `json:"last_activity_time"`
	CreatedAt        time.Time `json:"created_at"`
	Version          int64     `json:"version"`
}

func recordOf(p *progress.UserProgress) (progressRecord, error) {
	if p.State.Kind == progress.KindUnknown {
		return progressRecord{}, fmt.Errorf("cannot store progress for %s: %w", p.UserID, progress.ErrUnrecognizedState)
	}
	return progressRecord{
		UserID:           p.UserID,
		State:            p.State.String(),
		LastActivityTime: p.LastActivityTime.UTC(),
		CreatedAt:        p.CreatedAt.UTC(),
		Version:          p.Version,
	}, nil
}

func (r progressRecord) progress() (*progress.UserProgress, error) {
	p := &progress.UserProgress{
		UserID:           r.UserID,
		LastActivityTime: r.LastActivityTime,
		CreatedAt:        r.CreatedAt,
		Version:          r.Version,
	}
	st, err := progress.ParseState(r.State)
	if err != nil {
		return p, fmt.Errorf("progress for %s: %w", r.UserID, err)
	}
	p.State = st
	return p, nil
}
