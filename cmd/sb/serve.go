package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/scrumban/internal/server"
	"github.com/zulandar/scrumban/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the board API server",
		Long:  "Serves the JSON API and the stale-view event stream until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (env SB_PORT; default from config)")
	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, gormDB, err := connectFromConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := telemetry.Init(ctx, cfg.Telemetry, "scrumban", Version); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer telemetry.Shutdown(context.Background())

	return server.Start(ctx, server.StartOpts{
		DB:      gormDB,
		Port:    cfg.Server.Port,
		Out:     cmd.OutOrStdout(),
		Columns: cfg.DefaultColumns,
	})
}
