package main

import (
	"github.com/spf13/cobra"

	"github.com/seantiz/easel/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.open(serverLogger)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("easel: starting",
				"listen_addr", a.cfg.ListenAddr,
				"db_path", a.cfg.DBPath,
				"backends", a.cfg.Backends,
			)

			srv := api.NewServer(a.cfg.ListenAddr, a.store, a.dispatcher, a.source, a.logger)
			return srv.Run()
		},
	}
}
