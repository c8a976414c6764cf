// Package runner orchestrates the backup-and-restore pipeline.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avollmer/pgrefresh/internal/config"
	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/pgerr"
	"github.com/avollmer/pgrefresh/internal/services/admin"
	"github.com/avollmer/pgrefresh/internal/services/conn"
	"github.com/avollmer/pgrefresh/internal/services/dump"
	"github.com/avollmer/pgrefresh/internal/services/notify"
	"github.com/avollmer/pgrefresh/internal/services/restore"
	"github.com/avollmer/pgrefresh/internal/services/retention"
	"github.com/rs/zerolog"
)

// Service defines the interface for the pipeline driver.
type Service interface {
	Run(ctx context.Context, cfg models.Config) (*models.RunReport, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	dumpSvc      dump.Service
	adminSvc     admin.Service
	restoreSvc   restore.Service
	retentionSvc retention.Service
	notifySvc    notify.Service
	logger       zerolog.Logger
}

// New creates a new runner service with the default service wiring.
func New(logger zerolog.Logger) *Impl {
	conns := conn.New(logger, os.Getenv)
	return &Impl{
		dumpSvc:      dump.New(logger, conns),
		adminSvc:     admin.New(logger, conns),
		restoreSvc:   restore.New(logger, conns),
		retentionSvc: retention.New(logger),
		notifySvc:    notify.New(logger),
		logger:       logger,
	}
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	dumpSvc dump.Service,
	adminSvc admin.Service,
	restoreSvc restore.Service,
	retentionSvc retention.Service,
	notifySvc notify.Service,
) *Impl {
	return &Impl{
		dumpSvc:      dumpSvc,
		adminSvc:     adminSvc,
		restoreSvc:   restoreSvc,
		retentionSvc: retentionSvc,
		notifySvc:    notifySvc,
		logger:       logger,
	}
}

// Run executes the pipeline steps in order, halting on the first failure. The
// report is always populated and the notifier always invoked, success or not.
func (s *Impl) Run(ctx context.Context, cfg models.Config) (*models.RunReport, error) {
	start := time.Now()
	report := &models.RunReport{
		StartTime: start,
		Completed: models.NewStatusRecord(),
	}

	s.logger.Info().
		Str("source", fmt.Sprintf("%s:%d/%s", cfg.Source.Host, cfg.Source.Port, cfg.Source.Database)).
		Str("target", fmt.Sprintf("%s:%d/%s", cfg.Target.Host, cfg.Target.Port, cfg.Target.Database)).
		Msg("starting refresh run")

	runErr := s.run(ctx, cfg, report)

	report.Duration = time.Since(start)
	report.Success = runErr == nil
	if runErr != nil {
		report.Error = runErr.Error()
		s.logFailure(report.FailedStep, runErr)
	} else {
		s.logger.Info().
			Dur("duration", report.Duration).
			Msg("refresh run completed successfully")
	}

	if err := s.notifySvc.Send(ctx, *report); err != nil {
		s.logger.Error().Err(err).Msg("failed to send notification")
	}

	return report, runErr
}

func (s *Impl) run(ctx context.Context, cfg models.Config, report *models.RunReport) error {
	report.FailedStep = models.StepValidate
	if err := config.Validate(&cfg); err != nil {
		return fmt.Errorf("validate failed: %w", err)
	}
	report.Completed[models.StepValidate] = true

	report.FailedStep = models.StepBackup
	outputPath := filepath.Join(cfg.Backup.Directory, dump.ArtifactName(cfg.Source.Database))
	dumpResult, err := s.dumpSvc.Dump(ctx, cfg.Source, cfg.Backup, outputPath)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	report.BackupPath = dumpResult.OutputPath
	report.BackupBytes = dumpResult.SizeBytes
	report.Completed[models.StepBackup] = true

	report.FailedStep = models.StepDrain
	drainResult, err := s.adminSvc.Drain(ctx, cfg.Target)
	if err != nil {
		return fmt.Errorf("drain failed: %w", err)
	}
	s.logger.Info().
		Int("active", drainResult.Active).
		Int("terminated", drainResult.Terminated).
		Int("remaining", drainResult.Remaining).
		Msg("session drain completed")
	report.Completed[models.StepDrain] = true

	report.FailedStep = models.StepRecreate
	if err := s.adminSvc.Recreate(ctx, cfg.Target); err != nil {
		return fmt.Errorf("recreate failed: %w", err)
	}
	report.Completed[models.StepRecreate] = true

	report.FailedStep = models.StepRestore
	if _, err := s.restoreSvc.Restore(ctx, cfg.Target, cfg.Backup, dumpResult.OutputPath); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	report.Completed[models.StepRestore] = true

	report.FailedStep = models.StepReown
	if err := s.adminSvc.Reown(ctx, cfg.Target); err != nil {
		return fmt.Errorf("reown failed: %w", err)
	}
	report.Completed[models.StepReown] = true
	report.FailedStep = ""

	// Retention runs only after a fully successful pipeline; a sweep failure
	// never fails the run.
	sweepResult, err := s.retentionSvc.Sweep(ctx, cfg.Backup.Directory, cfg.Retention.Keep, dumpResult.OutputPath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("retention sweep failed")
	} else {
		report.SweptFiles = len(sweepResult.Removed)
		s.logger.Info().
			Int("removed", len(sweepResult.Removed)).
			Int("kept", sweepResult.Kept).
			Msg("retention sweep completed")
	}

	return nil
}

func (s *Impl) logFailure(step models.Step, err error) {
	evt := s.logger.Error().
		Err(err).
		Str("step", string(step)).
		Str("classification", string(pgerr.Classify(err)))

	if cmd := pgerr.CommandOf(err); cmd != nil {
		evt = evt.
			Strs("argv", cmd.Argv).
			Int("exit_code", cmd.ExitCode).
			Str("stdout", cmd.Stdout).
			Str("stderr", cmd.Stderr)
	}

	evt.Msg("refresh run failed")
}
