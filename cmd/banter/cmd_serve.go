package main

import (
	"BanterStudio/internal/api"
	"context"

	"github.com/spf13/cobra"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local control API for a desktop shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if err := a.open(ctx); err != nil {
				return err
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			srv := api.New(a.cfg.APIBindAddr, api.Deps{
				Store:    a.store,
				Pipeline: p,
				Player:   a.sequencer(),
				Exporter: a.exporter(),
				Gatherer: a.registry,
			}, a.logger)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			a.logger.Infow("Serving", "addr", srv.Addr(), "project", a.store.Project().DisplayName)

			<-ctx.Done()
			return srv.Stop(context.WithoutCancel(ctx))
		},
	}
	cmd.Flags().StringVar(&a.cfg.APIBindAddr, "addr", a.cfg.APIBindAddr, "Listen address")
	return cmd
}
