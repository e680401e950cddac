package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix = "user:"
	levelsKey     = "levels"
)

// RedisStorage keeps each user's progress as JSON under user:<id> and the
// level table as JSON values in the levels hash.
type RedisStorage struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage accepts either a host:port address or a redis:// URL.
func NewRedisStorage(redisURL string, logger *slog.Logger) *RedisStorage {
	return NewRedisStorageFromClient(redis.NewClient(redisOptions(redisURL)), logger)
}

func NewRedisStorageFromClient(client *redis.Client, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client: client,
		logger: logger,
	}
}

func redisOptions(redisURL string) *redis.Options {
	if strings.Contains(redisURL, "://") {
		if opts, err := redis.ParseURL(redisURL); err == nil {
			return opts
		}
	}
	return &redis.Options{Addr: redisURL}
}

// Client exposes the connection for the lock and queue, which share it.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Progress operations

func (r *RedisStorage) LoadProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	data, err := r.client.Get(ctx, userKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load progress", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	return decodeProgress(data)
}

func decodeProgress(data []byte) (*progress.UserProgress, error) {
	var rec progressRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return rec.progress()
}

func (r *RedisStorage) SaveProgress(ctx context.Context, p *progress.UserProgress) error {
	rec, err := recordOf(p)
	if err != nil {
		return err
	}
	rec.Version = p.Version + 1
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	key := userKeyPrefix + p.UserID
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != p.Version {
			return ErrVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		p.Version = rec.Version
		return nil
	case errors.Is(err, ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return fmt.Errorf("%w: user %s at version %d", ErrVersionConflict, p.UserID, p.Version)
	default:
		r.logger.Error("Failed to save progress", "user_id", p.UserID, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
}

// storedVersion returns 0 for a missing key.
func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var rec struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return rec.Version, nil
}

// Level operations

func (r *RedisStorage) UpsertLevels(ctx context.Context, levels []level.Level) (int, error) {
	if len(levels) == 0 {
		return 0, nil
	}
	values := make([]any, 0, len(levels)*2)
	for _, l := range levels {
		data, err := json.Marshal(l)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal level %s: %w", l.ID, err)
		}
		values = append(values, l.ID, data)
	}
	if err := r.client.HSet(ctx, levelsKey, values...).Err(); err != nil {
		return 0, fmt.Errorf("failed to upsert levels: %w", err)
	}
	return len(levels), nil
}

func (r *RedisStorage) ListLevels(ctx context.Context) ([]level.Level, error) {
	raw, err := r.client.HGetAll(ctx, levelsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	levels := make([]level.Level, 0, len(raw))
	for id, data := range raw {
		var l level.Level
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return nil, fmt.Errorf("failed to unmarshal level %s: %w", id, err)
		}
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ID < levels[j].ID })
	return levels, nil
}
