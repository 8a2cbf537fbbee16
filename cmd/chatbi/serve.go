package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cortexai/chatbi/internal/server"
	"github.com/spf13/cobra"
)

var serveSeed bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := server.NewApp(ctx, cfg, serveSeed)
		if err != nil {
			return err
		}
		if err := server.New(app).Run(ctx); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveSeed, "seed", false, "Seed the demo sales table before serving (sqlite only)")
	rootCmd.AddCommand(serveCmd)
}

// cmdContext returns the command context, which is nil outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
