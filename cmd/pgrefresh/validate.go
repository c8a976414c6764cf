package main

import (
	"fmt"
	"os"

	"github.com/avollmer/pgrefresh/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without contacting any database.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Source:")
	fmt.Printf("  Host: %s:%d\n", cfg.Source.Host, cfg.Source.Port)
	fmt.Printf("  Database: %s\n", cfg.Source.Database)
	fmt.Printf("  Owner: %s\n", cfg.Source.Owner)
	fmt.Printf("  Admin: %s\n", cfg.Source.Admin)
	fmt.Printf("  Password: %s\n", passwordHint(cfg.Source.Password))
	fmt.Println()
	fmt.Println("Target:")
	fmt.Printf("  Host: %s:%d\n", cfg.Target.Host, cfg.Target.Port)
	fmt.Printf("  Database: %s\n", cfg.Target.Database)
	fmt.Printf("  Owner: %s\n", cfg.Target.Owner)
	fmt.Printf("  Admin: %s\n", cfg.Target.Admin)
	fmt.Printf("  Password: %s\n", passwordHint(cfg.Target.Password))
	fmt.Println()
	fmt.Println("Backup:")
	fmt.Printf("  Directory: %s\n", cfg.Backup.Directory)
	fmt.Printf("  Dump timeout: %s\n", cfg.Backup.DumpTimeout)
	fmt.Printf("  Schema restore timeout: %s\n", cfg.Backup.SchemaTimeout)
	fmt.Printf("  Data restore timeout: %s\n", cfg.Backup.DataTimeout)
	fmt.Println()
	fmt.Println("Retention:")
	fmt.Printf("  Keep: %s\n", cfg.Retention.Keep)
	fmt.Println()
	fmt.Println("Log:")
	fmt.Printf("  Directory: %s\n", cfg.Log.Directory)

	return nil
}

func passwordHint(password string) string {
	if password == "" {
		return "(resolved via pgpass / PGPASSWORD at run time)"
	}
	return "(configured)"
}
