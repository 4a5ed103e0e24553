package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/manimforge/manimforge/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, log, cleanup, err := setup(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if !log.IsDebug() {
				gin.SetMode(gin.ReleaseMode)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := server.NewApp(cm, log)
			if err != nil {
				return err
			}
			if err := app.Start(ctx); err != nil {
				return err
			}

			if watch && cm.ConfigPath() != "" {
				if err := cm.Watch(ctx); err != nil {
					log.Warn("config hot reload disabled", "error", err)
				}
			}

			runErr := server.New(app, log).Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cm.GetConfig().Server.ShutdownTimeout)
			defer cancel()
			if err := app.Stop(shutdownCtx); err != nil {
				log.Warn("shutdown incomplete", "error", err)
			}
			log.Info("server shutdown complete")
			return runErr
		},
	}

	cmd.Flags().BoolVar(&watch, "watch-config", true, "reload the configuration when its file changes")
	return cmd
}
