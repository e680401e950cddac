package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/hunt-engine/internal/bootstrap"
	"github.com/jwebster45206/hunt-engine/pkg/level"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the levels file into the store",
		Long:  "seed validates the levels file and writes its levels to the store. Stored levels whose ids are not in the file are left alone.",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			f, err := level.LoadFile(e.cfg.LevelsFile)
			if err != nil {
				return err
			}
			n, err := bootstrap.Seed(ctx, e.store, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d levels from %s\n", n, e.cfg.LevelsFile)
			return nil
		}),
	}
}
