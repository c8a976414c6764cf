// Package restore shells out to pg_restore in two phases: schema, then data.
package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/pgerr"
	"github.com/avollmer/pgrefresh/internal/services/command"
	"github.com/avollmer/pgrefresh/internal/services/conn"
	"github.com/rs/zerolog"
)

// Service defines the interface for restore operations.
type Service interface {
	Restore(ctx context.Context, profile models.ConnectionProfile, settings models.BackupSettings, artifactPath string) (*models.RestoreResult, error)
}

// Impl implements the restore Service interface.
type Impl struct {
	executor  command.Executor
	passwords conn.Resolver
	logger    zerolog.Logger
}

// New creates a new restore service.
func New(logger zerolog.Logger, passwords conn.Resolver) *Impl {
	return &Impl{
		executor:  &command.DefaultExecutor{},
		passwords: passwords,
		logger:    logger,
	}
}

// NewWithExecutor creates a new restore service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, passwords conn.Resolver, executor command.Executor) *Impl {
	return &Impl{
		executor:  executor,
		passwords: passwords,
		logger:    logger,
	}
}

// Restore runs pg_restore against the profile's database as the owner role,
// schema phase first, data phase only after the schema phase exited zero.
// Each phase runs in its own single transaction; the data phase adds
// --exit-on-error so partial data is never silently accepted.
func (s *Impl) Restore(ctx context.Context, profile models.ConnectionProfile, settings models.BackupSettings, artifactPath string) (*models.RestoreResult, error) {
	info, err := os.Stat(artifactPath)
	if err != nil {
		return nil, pgerr.Restore("backup artifact missing", nil, err)
	}
	if !info.Mode().IsRegular() {
		return nil, pgerr.Restore(
			fmt.Sprintf("backup artifact %s is not a regular file", artifactPath), nil, nil)
	}

	s.logger.Info().
		Str("host", profile.Host).
		Str("database", profile.Database).
		Str("artifact", artifactPath).
		Msg("starting two-phase restore")

	start := time.Now()
	result := &models.RestoreResult{}

	var env []string
	if pw, source := s.passwords.Password(profile, profile.Owner); pw != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", pw))
		s.logger.Debug().Str("password_source", source).Msg("resolved restore credentials")
	}

	schemaArgs := s.phaseArgs(profile, artifactPath, "--schema-only", "--single-transaction")
	result.Schema, err = s.runPhase(ctx, "schema", env, schemaArgs, settings.SchemaTimeout)
	if err != nil {
		result.Duration = time.Since(start)
		return result, err
	}
	result.SchemaDone = true

	dataArgs := s.phaseArgs(profile, artifactPath, "--data-only", "--single-transaction", "--exit-on-error")
	result.Data, err = s.runPhase(ctx, "data", env, dataArgs, settings.DataTimeout)
	if err != nil {
		result.Duration = time.Since(start)
		return result, err
	}
	result.DataDone = true
	result.Duration = time.Since(start)

	s.logger.Info().
		Dur("duration", result.Duration).
		Msg("two-phase restore completed")

	return result, nil
}

func (s *Impl) phaseArgs(profile models.ConnectionProfile, artifactPath string, phaseFlags ...string) []string {
	args := []string{
		"-v",
		"-e",
		fmt.Sprintf("-h%s", profile.Host),
		fmt.Sprintf("-p%d", profile.Port),
		fmt.Sprintf("-U%s", profile.Owner),
	}
	args = append(args, phaseFlags...)
	args = append(args,
		fmt.Sprintf("--role=%s", profile.Owner),
		fmt.Sprintf("--dbname=%s", profile.Database),
		artifactPath,
	)
	return args
}

func (s *Impl) runPhase(ctx context.Context, phase string, env, args []string, timeout time.Duration) (models.CommandResult, error) {
	s.logger.Info().Str("phase", phase).Msg("starting restore phase")

	phaseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmdResult, execErr := s.executor.ExecuteWithEnv(phaseCtx, env, "pg_restore", args...)

	s.logger.Debug().
		Str("phase", phase).
		Strs("argv", cmdResult.Argv).
		Int("exit_code", cmdResult.ExitCode).
		Str("stdout", cmdResult.Stdout).
		Str("stderr", cmdResult.Stderr).
		Msg("pg_restore finished")

	if errors.Is(phaseCtx.Err(), context.DeadlineExceeded) {
		return cmdResult, pgerr.Restore(
			fmt.Sprintf("pg_restore %s phase timed out after %s", phase, timeout), &cmdResult, execErr)
	}
	if execErr != nil || cmdResult.ExitCode != 0 {
		return cmdResult, pgerr.Restore(
			fmt.Sprintf("pg_restore %s phase exited with non-zero status", phase), &cmdResult, execErr)
	}

	s.logger.Info().Str("phase", phase).Msg("restore phase completed")
	return cmdResult, nil
}
