package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cortexai/chatbi/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	askSession string
	askExport  string
	askSeed    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question and print the response as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)

		app, err := server.NewApp(ctx, cfg, askSeed)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				log.Warn().Err(err).Msg("close")
			}
		}()

		resp, err := app.Pipeline.Handle(ctx, strings.Join(args, " "), askSession)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if askExport != "" {
			return app.Pipeline.Export(resp.SessionID, askExport, out)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSession, "session", "", "Session id (generated when empty)")
	askCmd.Flags().StringVar(&askExport, "export", "", "Print the result in this export format (csv, json, yaml) instead of the full response")
	askCmd.Flags().BoolVar(&askSeed, "seed", false, "Seed the demo sales table first (sqlite only)")
	rootCmd.AddCommand(askCmd)
}
