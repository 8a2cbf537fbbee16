package main

import (
	"fmt"

	"github.com/cortexai/chatbi/internal/service"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo sales table in the sqlite store",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StorageType != "sqlite" {
			return fmt.Errorf("seed only supports sqlite storage, got %q", cfg.StorageType)
		}
		ctx := cmdContext(cmd)

		store := service.NewSQLiteService(cfg.SQLitePath)
		defer store.Close()
		db, err := store.DB(ctx)
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.SQLitePath, err)
		}
		if err := service.SeedSampleData(ctx, db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded sample sales data into %s\n", cfg.SQLitePath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
