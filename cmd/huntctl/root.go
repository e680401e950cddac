package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/hunt-engine/internal/config"
	"github.com/jwebster45206/hunt-engine/internal/logger"
	"github.com/jwebster45206/hunt-engine/internal/storage"
)

const commandTimeout = time.Minute

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "huntctl",
		Short:         "Operate a scavenger hunt deployment",
		Long:          "huntctl manages the level table and player progress in the store configured by the environment (STORE_BACKEND, REDIS_URL, DATABASE_URL, SQLITE_PATH).",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().String("levels", "", "Path to the levels file (overrides LEVELS_FILE)")

	root.AddCommand(newSeedCmd())
	root.AddCommand(newLevelsCmd())
	root.AddCommand(newProgressCmd())
	return root
}

// env is what every subcommand works against.
type env struct {
	cfg   *config.Config
	log   *slog.Logger
	store storage.Storage
}

// openEnv loads configuration, applies flag overrides and connects to the
// store. Logs go to stderr so stdout stays parseable.
func openEnv(ctx context.Context, cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("levels"); p != "" {
		cfg.LevelsFile = p
	}

	log := logger.SetupTo(cfg, cmd.ErrOrStderr())

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn("Error closing storage connection", "error", err)
	}
}

// withEnv runs fn with a connected env and a bounded context.
func withEnv(fn func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		e, err := openEnv(ctx, cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(ctx, cmd, e, args)
	}
}
