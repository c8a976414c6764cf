// Package notify reports the outcome of a refresh run.
//
// Delivery to an external channel (mail, chat webhook) is intentionally not
// implemented; the log-backed notifier is the only implementation and the
// Service interface is the seam where a real transport would plug in.
package notify

import (
	"context"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Service defines the interface for run notifications.
type Service interface {
	Send(ctx context.Context, report models.RunReport) error
}

// LogNotifier writes the run report to the structured log.
type LogNotifier struct {
	logger zerolog.Logger
}

// New creates a new log-backed notifier.
func New(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Send renders the report as a single log event.
func (n *LogNotifier) Send(ctx context.Context, report models.RunReport) error {
	evt := n.logger.Info()
	if !report.Success {
		evt = n.logger.Error()
	}

	completed := make([]string, 0, len(models.Steps))
	for _, step := range models.Steps {
		if report.Completed[step] {
			completed = append(completed, string(step))
		}
	}

	evt = evt.
		Bool("success", report.Success).
		Dur("duration", report.Duration).
		Strs("completed_steps", completed)

	if report.BackupPath != "" {
		evt = evt.
			Str("backup", report.BackupPath).
			Str("backup_size", humanize.Bytes(uint64(report.BackupBytes)))
	}
	if report.SweptFiles > 0 {
		evt = evt.Int("swept_files", report.SweptFiles)
	}
	if !report.Success {
		evt = evt.
			Str("failed_step", string(report.FailedStep)).
			Str("error", report.Error)
	}

	evt.Msg("refresh run report")
	return nil
}
