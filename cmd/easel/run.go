package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seantiz/easel/internal/backend"
	"github.com/seantiz/easel/internal/engine"
)

const regeneratePrompt = "indices to regenerate (space separated, N to quit): "

func newRunCommand(ctx *commandContext) *cobra.Command {
	var maxWorkers int
	var interactive bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render every prompt once across the live backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxWorkers < 0 {
				return fmt.Errorf("--max-workers must be non-negative")
			}
			a, err := ctx.open(consoleLogger)
			if err != nil {
				return err
			}
			defer a.close()

			if maxWorkers == 0 {
				maxWorkers = a.cfg.MaxWorkers
			}
			opts := engine.Options{MaxWorkers: maxWorkers}

			tasks, err := a.source.Tasks(nil, nil)
			if err != nil {
				return err
			}
			summary, err := a.dispatcher.Dispatch(cmd.Context(), tasks, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderSummary(summary))

			if !interactive {
				return nil
			}
			return regenerateLoop(cmd.Context(), cmd.InOrStdin(), out, func(indices []int) error {
				tasks, err := a.source.Tasks(nil, nil)
				if err != nil {
					return err
				}
				summary, err := a.dispatcher.Regenerate(cmd.Context(), tasks, indices, opts)
				if errors.Is(err, engine.ErrNothingToRegenerate) {
					fmt.Fprintf(out, "nothing to regenerate; skipped %v (valid range 1-%d)\n", summary.Skipped, len(tasks))
					return nil
				}
				if errors.Is(err, backend.ErrBackendUnavailable) {
					fmt.Fprintln(out, err)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderSummary(summary))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Cap on concurrent renders (0 = one per live backend)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Prompt for indices to regenerate after the run")

	return cmd
}

// regenerateLoop reads index lists from in until the user quits or input ends
// and hands each non-empty list to regenerate.
func regenerateLoop(ctx context.Context, in io.Reader, out io.Writer, regenerate func([]int) error) error {
	scanner := bufio.NewScanner(in)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, regeneratePrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		indices, quit, err := parseIndices(scanner.Text())
		if quit {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if len(indices) == 0 {
			continue
		}
		if err := regenerate(indices); err != nil {
			return err
		}
	}
}

// parseIndices parses a whitespace-separated list of 1-based indices. A lone
// "N" (any case) means quit.
func parseIndices(line string) (indices []int, quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 1 && strings.EqualFold(fields[0], "n") {
		return nil, true, nil
	}
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false, fmt.Errorf("invalid index %q", f)
		}
		indices = append(indices, n)
	}
	return indices, false, nil
}
