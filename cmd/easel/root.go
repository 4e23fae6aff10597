package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var backendsFlag string
	var configFlag string

	ctx := newCommandContext(&backendsFlag, &configFlag)

	rootCmd := &cobra.Command{
		Use:           "easel",
		Short:         "Distribute prompt batches across Stable Diffusion WebUI backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&backendsFlag, "backends", "", "Comma-separated backend addresses (overrides EASEL_BACKENDS)")
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Pipeline TOML file (overrides EASEL_PIPELINE_CONFIG)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newRegenerateCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))

	return rootCmd
}
