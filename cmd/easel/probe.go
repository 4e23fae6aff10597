package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check which backends are alive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(consoleLogger)
			if err != nil {
				return err
			}
			defer a.close()

			addrs := a.dispatcher.Registry().Backends()
			if len(addrs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no backends registered")
				return nil
			}
			statuses := a.dispatcher.Prober().ProbeAll(cmd.Context(), addrs)
			fmt.Fprintln(cmd.OutOrStdout(), renderProbe(statuses))
			return nil
		},
	}
}
