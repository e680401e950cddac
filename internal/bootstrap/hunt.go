// Package bootstrap assembles the hunt content a process plays: the
// level catalog from the store (seeded from the levels file) and the
// player-facing copy.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jwebster45206/hunt-engine/internal/config"
	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/pkg/level"
)

// LevelStore is the level half of storage.Storage.
type LevelStore interface {
	UpsertLevels(ctx context.Context, levels []level.Level) (int, error)
	ListLevels(ctx context.Context) ([]level.Level, error)
}

// Hunt is the content an engine is built from.
type Hunt struct {
	Title   string
	Catalog *level.Catalog
	Copy    *engine.Copy
	// Seeded is the number of levels written to the store at startup.
	Seeded int
}

// LoadHunt reads cfg.LevelsFile, upserts its levels when cfg.SeedLevels
// is set, and builds the catalog from the stored rows the file names.
// Stored content wins over the file for those ids; stored rows the file
// no longer names are left in place but not played.
//
// With seeding off the levels file is optional. Without it, or when it
// lists no levels, every stored row is played.
func LoadHunt(ctx context.Context, cfg *config.Config, store LevelStore, log *slog.Logger) (*Hunt, error) {
	file, err := level.LoadFile(cfg.LevelsFile)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && !cfg.SeedLevels:
		log.Info("No levels file, using stored levels and default copy", "path", cfg.LevelsFile)
		file = nil
	default:
		return nil, err
	}

	h := &Hunt{Copy: engine.DefaultCopy()}
	if file != nil {
		h.Title = file.Title
		h.Copy, err = h.Copy.WithOverrides(file.Messages, file.Commands)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.LevelsFile, err)
		}
	}

	if cfg.SeedLevels {
		h.Seeded, err = Seed(ctx, store, file)
		if err != nil {
			return nil, err
		}
		log.Info("Seeded levels", "count", h.Seeded, "path", cfg.LevelsFile)
	}

	levels, err := store.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	if file != nil && len(file.Levels) > 0 {
		var ignored []string
		levels, ignored = namedIn(file, levels)
		if len(ignored) > 0 {
			log.Warn("Stored levels not in the levels file are ignored", "ids", ignored)
		}
	}
	h.Catalog, err = level.NewCatalog(levels)
	if err != nil {
		return nil, fmt.Errorf("stored levels: %w", err)
	}

	log.Info("Hunt loaded", "title", h.Title, "levels", h.Catalog.Len(), "first_level", h.Catalog.First().ID)
	return h, nil
}

// Seed validates the file's levels as a catalog and upserts them with
// their successors resolved.
func Seed(ctx context.Context, store LevelStore, file *level.File) (int, error) {
	cat, err := file.Catalog()
	if err != nil {
		return 0, err
	}
	n, err := store.UpsertLevels(ctx, cat.Levels())
	if err != nil {
		return 0, fmt.Errorf("failed to seed levels: %w", err)
	}
	return n, nil
}

// namedIn splits stored levels into those whose id the file lists and the
// ids of the rest.
func namedIn(file *level.File, stored []level.Level) (kept []level.Level, ignored []string) {
	ids := make(map[string]bool, len(file.Levels))
	for _, l := range file.Levels {
		ids[l.ID] = true
	}
	for _, l := range stored {
		if ids[l.ID] {
			kept = append(kept, l)
		} else {
			ignored = append(ignored, l.ID)
		}
	}
	return kept, ignored
}
