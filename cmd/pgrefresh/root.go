package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile string
	verbose    bool
	quiet      bool
	jsonOutput bool

	// stdoutWriter is the console half of the log output, kept so a per-run
	// log file can be attached next to it after the config is loaded.
	stdoutWriter io.Writer
)

var rootCmd = &cobra.Command{
	Use:   "pgrefresh",
	Short: "Refresh a PostgreSQL database from a production dump",
	Long: `pgrefresh automates a database backup-and-restore cycle:
  - pg_dump of the source database to a custom-format archive
  - draining active sessions on the target database
  - dropping and recreating the target
  - two-phase pg_restore (schema, then data)
  - reassigning privileges and ownership
  - age-based cleanup of old dump artifacts

Use as a one-shot command with an external scheduler (cron, systemd timer, etc.)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (required)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func setupLogging() {
	// Set output format
	if jsonOutput {
		stdoutWriter = os.Stdout
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		stdoutWriter = output
	}
	log.Logger = zerolog.New(stdoutWriter).With().Timestamp().Logger()

	// Set log level
	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// attachRunLogFile adds a dated log file next to the console output. Every
// run of the same day appends to the same file.
func attachRunLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	name := fmt.Sprintf("pgrefresh_%s.log", time.Now().Format("20060102"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(stdoutWriter, f)).With().Timestamp().Logger()
	return f, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
