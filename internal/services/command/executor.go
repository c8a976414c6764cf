// Package command runs external tools with captured output.
package command

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/avollmer/pgrefresh/internal/models"
)

// Executor allows mocking exec.Command in tests.
type Executor interface {
	ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) (models.CommandResult, error)
}

// DefaultExecutor is the default executor using os/exec. Stdout and stderr are
// captured separately so failures carry both streams for diagnosis.
type DefaultExecutor struct{}

// ExecuteWithEnv runs a command with additional environment variables and
// returns the captured invocation. The error is the one reported by exec,
// including context deadline expiry; callers classify it.
func (e *DefaultExecutor) ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) (models.CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := models.CommandResult{
		Argv:     append([]string{name}, args...),
		ExitCode: -1,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	return result, err
}
