// Package pgerr defines the closed set of error variants the pipeline reports.
package pgerr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/avollmer/pgrefresh/internal/models"
)

// Kind tags an error with its place in the failure taxonomy.
type Kind string

const (
	KindConnection Kind = "connection_failed"
	KindBackup     Kind = "backup_failed"
	KindRestore    Kind = "restore_failed"
	KindAdmin      Kind = "admin_operation_failed"
	KindUnexpected Kind = "unexpected"
)

// Error is a classified pipeline failure wrapping its underlying cause.
// Command is non-nil when an external tool invocation is available for
// diagnosis.
type Error struct {
	Kind    Kind
	Op      string
	Command *models.CommandResult
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Kind, e.Op)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Command != nil {
		fmt.Fprintf(&b, " (command %q exited %d)",
			strings.Join(e.Command.Argv, " "), e.Command.ExitCode)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Connection reports an authentication or network failure.
func Connection(op string, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, Err: err}
}

// Backup reports a dump tool failure, timeout, or missing output.
func Backup(op string, cmd *models.CommandResult, err error) *Error {
	return &Error{Kind: KindBackup, Op: op, Command: cmd, Err: err}
}

// Restore reports a restore tool failure, timeout, or missing input.
func Restore(op string, cmd *models.CommandResult, err error) *Error {
	return &Error{Kind: KindRestore, Op: op, Command: cmd, Err: err}
}

// Admin reports a failed administrative SQL statement.
func Admin(op string, err error) *Error {
	return &Error{Kind: KindAdmin, Op: op, Err: err}
}

// Unexpected reports a failure outside the known taxonomy.
func Unexpected(op string, err error) *Error {
	return &Error{Kind: KindUnexpected, Op: op, Err: err}
}

// Classify returns the taxonomy kind of err. Errors that are not pipeline
// errors classify as unexpected.
func Classify(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// CommandOf extracts the external tool diagnostics from err, if any.
func CommandOf(err error) *models.CommandResult {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Command
	}
	return nil
}
