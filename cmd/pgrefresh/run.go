package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avollmer/pgrefresh/internal/config"
	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/services/runner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute the backup and restore pipeline",
	Long: `Execute the complete refresh pipeline:
1. Validate configuration
2. pg_dump the source database
3. Terminate active sessions on the target
4. Drop and recreate the target database
5. pg_restore schema, then data
6. Grant privileges and transfer ownership
7. Delete dump artifacts older than the retention window`,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	// Attach the dated per-run log file
	if logFile, err := attachRunLogFile(cfg.Log.Directory); err != nil {
		log.Warn().Err(err).Msg("continuing without log file")
	} else {
		defer func() { _ = logFile.Close() }()
	}

	log.Info().
		Str("config", configFile).
		Str("source", cfg.Source.Database).
		Str("target", cfg.Target.Database).
		Msg("configuration loaded")

	// Set up context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
		cancel()
	}()

	// Run the pipeline
	runnerSvc := runner.New(log.Logger)
	report, err := runnerSvc.Run(ctx, *cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pgrefresh failed: %v\n", err)
		fmt.Fprint(os.Stderr, stepSummary(report))
		return err
	}

	log.Info().Msg("refresh completed successfully")
	return nil
}

// stepSummary renders the per-step completion record for stderr.
func stepSummary(report *models.RunReport) string {
	if report == nil {
		return ""
	}

	out := "steps:\n"
	for _, step := range models.Steps {
		mark := "failed/skipped"
		if report.Completed[step] {
			mark = "completed"
		}
		out += fmt.Sprintf("  %-8s %s\n", step, mark)
	}
	return out
}
