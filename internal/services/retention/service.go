// Package retention deletes dump artifacts older than the configured window.
package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Service defines the interface for the retention sweep.
type Service interface {
	// Sweep removes dump artifacts in dir strictly older than the keep window.
	// exclude names the artifact produced by the current run, which is never
	// removed regardless of age.
	Sweep(ctx context.Context, dir string, keep time.Duration, exclude string) (*models.SweepResult, error)
}

// Impl implements the retention Service interface.
type Impl struct {
	logger zerolog.Logger
	now    func() time.Time
}

// New creates a new retention service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{
		logger: logger,
		now:    time.Now,
	}
}

// NewWithClock creates a new retention service with a custom clock (for testing).
func NewWithClock(logger zerolog.Logger, now func() time.Time) *Impl {
	return &Impl{
		logger: logger,
		now:    now,
	}
}

// Sweep walks the backup directory once, non-recursively. Only files with
// dump artifact extensions are considered; anything else in the directory is
// left alone.
func (s *Impl) Sweep(ctx context.Context, dir string, keep time.Duration, exclude string) (*models.SweepResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	cutoff := s.now().Add(-keep)
	result := &models.SweepResult{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if exclude != "" && path == exclude {
			result.Kept++
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("cannot stat backup file")
			continue
		}

		if !info.ModTime().Before(cutoff) {
			result.Kept++
			continue
		}

		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("cannot remove expired backup")
			continue
		}

		s.logger.Info().
			Str("file", path).
			Str("size", humanize.Bytes(uint64(info.Size()))).
			Str("age", s.now().Sub(info.ModTime()).Round(time.Hour).String()).
			Msg("removed expired backup")
		result.Removed = append(result.Removed, path)
	}

	return result, nil
}

func isArtifact(name string) bool {
	switch filepath.Ext(name) {
	case ".dump", ".sql":
		return true
	}
	return false
}
