package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"assetdesk-backend/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("migrate: ok")
	return nil
}
