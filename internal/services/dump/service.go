// Package dump shells out to pg_dump to produce backup artifacts.
package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/pgerr"
	"github.com/avollmer/pgrefresh/internal/services/command"
	"github.com/avollmer/pgrefresh/internal/services/conn"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// An artifact smaller than this is suspicious for any real database; the size
// check is advisory, not fatal.
const minArtifactBytes = 1024

// Service defines the interface for backup operations.
type Service interface {
	Dump(ctx context.Context, profile models.ConnectionProfile, settings models.BackupSettings, outputPath string) (*models.DumpResult, error)
}

// Impl implements the dump Service interface.
type Impl struct {
	executor  command.Executor
	passwords conn.Resolver
	logger    zerolog.Logger
}

// New creates a new dump service.
func New(logger zerolog.Logger, passwords conn.Resolver) *Impl {
	return &Impl{
		executor:  &command.DefaultExecutor{},
		passwords: passwords,
		logger:    logger,
	}
}

// NewWithExecutor creates a new dump service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, passwords conn.Resolver, executor command.Executor) *Impl {
	return &Impl{
		executor:  executor,
		passwords: passwords,
		logger:    logger,
	}
}

// Dump runs pg_dump against the profile's database as the admin role, writing
// a custom-format archive to outputPath. It enforces the configured timeout
// and verifies the artifact afterwards.
func (s *Impl) Dump(ctx context.Context, profile models.ConnectionProfile, settings models.BackupSettings, outputPath string) (*models.DumpResult, error) {
	s.logger.Info().
		Str("host", profile.Host).
		Int("port", profile.Port).
		Str("database", profile.Database).
		Str("output", outputPath).
		Msg("starting database dump")

	start := time.Now()

	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, pgerr.Backup("create backup directory", nil, err)
	}

	if free, err := freeDiskBytes(dir); err == nil && free < settings.MinFreeBytes {
		s.logger.Warn().
			Str("free", humanize.Bytes(free)).
			Str("floor", humanize.Bytes(settings.MinFreeBytes)).
			Str("directory", dir).
			Msg("low disk space in backup directory")
	}

	args := []string{
		fmt.Sprintf("-h%s", profile.Host),
		fmt.Sprintf("-p%d", profile.Port),
		fmt.Sprintf("-U%s", profile.Admin),
		fmt.Sprintf("-d%s", profile.Database),
		"--no-owner",
		"--format=custom",
		"-v",
		fmt.Sprintf("-f%s", outputPath),
	}

	var env []string
	if pw, source := s.passwords.Password(profile, profile.Admin); pw != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", pw))
		s.logger.Debug().Str("password_source", source).Msg("resolved dump credentials")
	}

	dumpCtx, cancel := context.WithTimeout(ctx, settings.DumpTimeout)
	defer cancel()

	cmdResult, execErr := s.executor.ExecuteWithEnv(dumpCtx, env, "pg_dump", args...)
	s.logCommand(cmdResult)

	if errors.Is(dumpCtx.Err(), context.DeadlineExceeded) {
		return nil, pgerr.Backup(
			fmt.Sprintf("pg_dump timed out after %s", settings.DumpTimeout), &cmdResult, execErr)
	}
	if execErr != nil || cmdResult.ExitCode != 0 {
		return nil, pgerr.Backup("pg_dump exited with non-zero status", &cmdResult, execErr)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, pgerr.Backup("dump output file missing", &cmdResult, err)
	}
	if info.Size() < minArtifactBytes {
		s.logger.Warn().
			Str("output", outputPath).
			Int64("size_bytes", info.Size()).
			Msg("dump artifact is implausibly small")
	}

	result := &models.DumpResult{
		OutputPath: outputPath,
		SizeBytes:  info.Size(),
		Duration:   time.Since(start),
		Command:    cmdResult,
	}

	s.logger.Info().
		Str("output", outputPath).
		Str("size", humanize.Bytes(uint64(info.Size()))).
		Dur("duration", result.Duration).
		Msg("database dump completed")

	return result, nil
}

func (s *Impl) logCommand(result models.CommandResult) {
	s.logger.Debug().
		Strs("argv", result.Argv).
		Int("exit_code", result.ExitCode).
		Str("stdout", result.Stdout).
		Str("stderr", result.Stderr).
		Msg("pg_dump finished")
}

// ArtifactName returns the dump file name for a database,
// e.g. orders_20240131094500.dump.
func ArtifactName(database string) string {
	return fmt.Sprintf("%s_%s.dump", database, time.Now().Format("20060102150405"))
}

// freeDiskBytes reports the bytes available to unprivileged users on the
// filesystem containing path.
func freeDiskBytes(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
