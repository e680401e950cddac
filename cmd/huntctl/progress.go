package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/hunt-engine/internal/bootstrap"
	"github.com/jwebster45206/hunt-engine/internal/engine"
	"github.com/jwebster45206/hunt-engine/pkg/progress"
)

func newProgressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Inspect or reset a player's progress",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <user-id>",
		Short: "Show a player's stored progress",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			p, err := e.store.LoadProgress(ctx, args[0])
			corrupt := errors.Is(err, progress.ErrUnrecognizedState)
			if err != nil && !corrupt {
				return err
			}
			if p == nil {
				return fmt.Errorf("no progress for %s", args[0])
			}

			out := cmd.OutOrStdout()
			state := p.State.String()
			if corrupt {
				state = "corrupt (" + err.Error() + ")"
			}
			fmt.Fprintf(out, "user:          %s\n", p.UserID)
			fmt.Fprintf(out, "state:         %s\n", state)
			fmt.Fprintf(out, "last activity: %s\n", p.LastActivityTime.Format(time.RFC3339))
			fmt.Fprintf(out, "created:       %s\n", p.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "version:       %d\n", p.Version)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <user-id>",
		Short: "Return a player to the welcome state",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, args []string) error {
			// Reset goes through the engine so it takes the same
			// versioned write as a RESET message.
			e.cfg.SeedLevels = false
			hunt, err := bootstrap.LoadHunt(ctx, e.cfg, e.store, e.log)
			if err != nil {
				return err
			}
			eng, err := engine.New(engine.Config{
				Catalog:      hunt.Catalog,
				Store:        e.store,
				Copy:         hunt.Copy,
				Logger:       e.log,
				StoreTimeout: e.cfg.StoreTimeout,
			})
			if err != nil {
				return err
			}
			res, err := eng.Reset(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", args[0], res.Previous.String(), res.State.String())
			return nil
		}),
	})

	return cmd
}
