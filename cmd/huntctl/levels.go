package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/jwebster45206/hunt-engine/pkg/level"
)

const questionWidth = 40

func newLevelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "levels",
		Short: "List the stored levels in chain order",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(ctx context.Context, cmd *cobra.Command, e *env, _ []string) error {
			levels, err := e.store.ListLevels(ctx)
			if err != nil {
				return err
			}
			if len(levels) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no levels stored; run huntctl seed")
				return nil
			}

			cat, err := level.NewCatalog(levels)
			if err != nil {
				// Show the raw rows so the broken link can be found.
				fmt.Fprintf(cmd.ErrOrStderr(), "stored levels do not form a valid chain: %v\n", err)
			} else {
				levels = cat.Levels()
			}

			showAnswers, _ := cmd.Flags().GetBool("answers")
			fmt.Fprintln(cmd.OutOrStdout(), renderLevels(levels, showAnswers))
			return nil
		}),
	}
	cmd.Flags().Bool("answers", false, "Include canonical answers")
	return cmd
}

func renderLevels(levels []level.Level, showAnswers bool) string {
	headers := []string{"ID", "NEXT", "QUESTION"}
	if showAnswers {
		headers = append(headers, "ANSWER")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...)

	for _, l := range levels {
		row := []string{l.ID, l.NextLevelID, truncate.StringWithTail(firstLine(l.QuestionText), questionWidth, "…")}
		if showAnswers {
			row = append(row, l.CanonicalAnswer)
		}
		t.Row(row...)
	}
	return t.Render()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
