package models

import "time"

// Step names one pipeline stage.
type Step string

// Pipeline stages in execution order.
const (
	StepValidate Step = "validate"
	StepBackup   Step = "backup"
	StepDrain    Step = "drain"
	StepRecreate Step = "recreate"
	StepRestore  Step = "restore"
	StepReown    Step = "reown"
)

// Steps lists the pipeline stages in execution order.
var Steps = []Step{StepValidate, StepBackup, StepDrain, StepRecreate, StepRestore, StepReown}

// StatusRecord maps each pipeline step to whether it completed.
type StatusRecord map[Step]bool

// NewStatusRecord returns a record with every step pending.
func NewStatusRecord() StatusRecord {
	r := make(StatusRecord, len(Steps))
	for _, s := range Steps {
		r[s] = false
	}
	return r
}

// RunReport summarizes a single pipeline run for logging and notification.
type RunReport struct {
	Success   bool
	StartTime time.Time
	Duration  time.Duration
	Completed StatusRecord

	BackupPath  string
	BackupBytes int64
	SweptFiles  int

	// Failure info.
	FailedStep Step
	Error      string
}
