package models

import "time"

// CommandResult captures one external tool invocation.
type CommandResult struct {
	Argv     []string
	ExitCode int
	Stdout   string
	Stderr   string
}

// DumpResult holds the result of a pg_dump operation.
type DumpResult struct {
	OutputPath string
	SizeBytes  int64
	Duration   time.Duration
	Command    CommandResult
}

// RestoreResult holds the results of the two pg_restore phases.
type RestoreResult struct {
	SchemaDone bool
	DataDone   bool
	Schema     CommandResult
	Data       CommandResult
	Duration   time.Duration
}

// DrainResult holds the outcome of a session drain against the target.
type DrainResult struct {
	Active     int // other sessions found before terminating
	Terminated int
	Remaining  int // sessions still alive after termination (best-effort)
}

// SweepResult holds the outcome of a retention sweep.
type SweepResult struct {
	Removed []string
	Kept    int
}
