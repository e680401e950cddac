package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jwebster45206/hunt-engine/pkg/level"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

// MockStorage is an in-memory Storage. It backs STORE_BACKEND=memory and
// tests; the Set*Error methods inject failures.
type MockStorage struct {
	mu        sync.RWMutex
	users     map[string]progressRecord
	levels    map[string]level.Level
	pingError error
	loadError error
	saveError error
	saves     int
}

var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{
		users:  make(map[string]progressRecord),
		levels: make(map[string]level.Level),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetLoadError makes LoadProgress fail with err until cleared with nil.
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// SetSaveError makes SaveProgress fail with err until cleared with nil.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetRawState stores token as the user's state without validation, for
// exercising corrupt records.
func (m *MockStorage) SetRawState(userID, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.users[userID]
	rec.UserID = userID
	rec.State = token
	rec.Version++
	m.users[userID] = rec
}

// Saves returns the number of successful SaveProgress calls.
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) LoadProgress(ctx context.Context, userID string) (*progress.UserProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return rec.progress()
}

func (m *MockStorage) SaveProgress(ctx context.Context, p *progress.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, err := recordOf(p)
	if err != nil {
		return err
	}
	if m.users[p.UserID].Version != p.Version {
		return fmt.Errorf("%w: user %s at version %d", ErrVersionConflict, p.UserID, p.Version)
	}
	if existing, ok := m.users[p.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	}
	rec.Version = p.Version + 1
	m.users[p.UserID] = rec
	m.saves++
	p.Version = rec.Version
	return nil
}

func (m *MockStorage) UpsertLevels(ctx context.Context, levels []level.Level) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range levels {
		m.levels[l.ID] = l
	}
	return len(levels), nil
}

func (m *MockStorage) ListLevels(ctx context.Context) ([]level.Level, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	levels := make([]level.Level, 0, len(m.levels))
	for _, l := range m.levels {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].ID < levels[j].ID })
	return levels, nil
}
