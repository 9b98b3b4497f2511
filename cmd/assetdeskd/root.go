package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"assetdesk-backend/config"
	"assetdesk-backend/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "assetdeskd",
	Short:         "IT asset and ticketing desk backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (default $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(remindCmd)
}

// setup loads the configuration and builds the process logger.
func setup() (*config.Config, zerolog.Logger, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}
	logger := logging.New(logging.Options{Level: cfg.Log.Level, Console: cfg.Log.Console})
	logger.Info().Str("path", path).Msg("configuration loaded")
	return cfg, logger, nil
}
