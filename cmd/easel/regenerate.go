package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seantiz/easel/internal/engine"
)

func newRegenerateCommand(ctx *commandContext) *cobra.Command {
	var maxWorkers int

	cmd := &cobra.Command{
		Use:   "regenerate N...",
		Short: "Re-render the prompts at the given 1-based indices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, _, err := parseIndices(strings.Join(args, " "))
			if err != nil {
				return err
			}
			a, err := ctx.open(consoleLogger)
			if err != nil {
				return err
			}
			defer a.close()

			if maxWorkers == 0 {
				maxWorkers = a.cfg.MaxWorkers
			}
			tasks, err := a.source.Tasks(nil, nil)
			if err != nil {
				return err
			}
			summary, err := a.dispatcher.Regenerate(cmd.Context(), tasks, indices, engine.Options{MaxWorkers: maxWorkers})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(summary))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Cap on concurrent renders (0 = one per live backend)")

	return cmd
}
