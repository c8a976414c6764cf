package main

import (
	"context"

	"github.com/avollmer/pgrefresh/internal/config"
	"github.com/avollmer/pgrefresh/internal/services/retention"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run only the retention sweep",
	Long: `Delete dump artifacts older than the configured retention window
without running the backup and restore pipeline.`,
	RunE: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	retentionSvc := retention.New(log.Logger)
	result, err := retentionSvc.Sweep(context.Background(), cfg.Backup.Directory, cfg.Retention.Keep, "")
	if err != nil {
		log.Error().Err(err).Msg("retention sweep failed")
		return err
	}

	log.Info().
		Int("removed", len(result.Removed)).
		Int("kept", result.Kept).
		Msg("retention sweep completed")
	return nil
}
