package restore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avollmer/pgrefresh/internal/models"
	"github.com/avollmer/pgrefresh/internal/pgerr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invocation struct {
	env  []string
	args []string
}

type scriptedExecutor struct {
	invocations []invocation
	results     []models.CommandResult
	errs        []error
}

func (m *scriptedExecutor) ExecuteWithEnv(ctx context.Context, env []string, name string, args ...string) (models.CommandResult, error) {
	i := len(m.invocations)
	m.invocations = append(m.invocations, invocation{env: env, args: args})

	result := models.CommandResult{Argv: append([]string{name}, args...)}
	var err error
	if i < len(m.results) {
		result = m.results[i]
	}
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return result, err
}

type fixedResolver struct {
	password string
}

func (r *fixedResolver) Password(models.ConnectionProfile, string) (string, string) {
	if r.password == "" {
		return "", "none"
	}
	return r.password, "config"
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testProfile() models.ConnectionProfile {
	return models.ConnectionProfile{
		Host:     "localhost",
		Port:     5432,
		Database: "orders_local",
		Owner:    "orders_owner",
		Admin:    "orders_admin",
	}
}

func testSettings() models.BackupSettings {
	return models.BackupSettings{
		SchemaTimeout: time.Minute,
		DataTimeout:   time.Minute,
	}
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.dump")
	require.NoError(t, os.WriteFile(path, []byte("PGDMP fake archive"), 0o600))
	return path
}

func TestRestore_RunsSchemaThenData(t *testing.T) {
	artifact := writeArtifact(t)
	executor := &scriptedExecutor{}

	svc := NewWithExecutor(testLogger(), &fixedResolver{password: "pw"}, executor)
	result, err := svc.Restore(context.Background(), testProfile(), testSettings(), artifact)

	require.NoError(t, err)
	assert.True(t, result.SchemaDone)
	assert.True(t, result.DataDone)

	require.Len(t, executor.invocations, 2)

	schema := executor.invocations[0].args
	assert.Contains(t, schema, "-v")
	assert.Contains(t, schema, "-e")
	assert.Contains(t, schema, "-hlocalhost")
	assert.Contains(t, schema, "-Uorders_owner")
	assert.Contains(t, schema, "--schema-only")
	assert.Contains(t, schema, "--single-transaction")
	assert.Contains(t, schema, "--role=orders_owner")
	assert.Contains(t, schema, "--dbname=orders_local")
	assert.Contains(t, schema, artifact)

	data := executor.invocations[1].args
	assert.Contains(t, data, "--data-only")
	assert.Contains(t, data, "--single-transaction")
	assert.Contains(t, data, "--exit-on-error")
	assert.NotContains(t, data, "--schema-only")

	assert.Contains(t, executor.invocations[0].env, "PGPASSWORD=pw")
	assert.Contains(t, executor.invocations[1].env, "PGPASSWORD=pw")
}

func TestRestore_SchemaFailureSkipsData(t *testing.T) {
	artifact := writeArtifact(t)
	executor := &scriptedExecutor{
		results: []models.CommandResult{
			{Argv: []string{"pg_restore"}, ExitCode: 1, Stderr: "relation already exists"},
		},
		errs: []error{errors.New("exit status 1")},
	}

	svc := NewWithExecutor(testLogger(), &fixedResolver{}, executor)
	result, err := svc.Restore(context.Background(), testProfile(), testSettings(), artifact)

	require.Error(t, err)
	assert.Equal(t, pgerr.KindRestore, pgerr.Classify(err))
	assert.Contains(t, err.Error(), "schema phase")

	// The data phase must never run after a schema failure.
	assert.Len(t, executor.invocations, 1)
	assert.False(t, result.SchemaDone)
	assert.False(t, result.DataDone)

	cmd := pgerr.CommandOf(err)
	require.NotNil(t, cmd)
	assert.Contains(t, cmd.Stderr, "already exists")
}

func TestRestore_DataFailure(t *testing.T) {
	artifact := writeArtifact(t)
	executor := &scriptedExecutor{
		results: []models.CommandResult{
			{Argv: []string{"pg_restore"}, ExitCode: 0},
			{Argv: []string{"pg_restore"}, ExitCode: 1, Stderr: "COPY failed"},
		},
		errs: []error{nil, errors.New("exit status 1")},
	}

	svc := NewWithExecutor(testLogger(), &fixedResolver{}, executor)
	result, err := svc.Restore(context.Background(), testProfile(), testSettings(), artifact)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "data phase")
	assert.True(t, result.SchemaDone)
	assert.False(t, result.DataDone)
}

func TestRestore_MissingArtifact(t *testing.T) {
	executor := &scriptedExecutor{}

	svc := NewWithExecutor(testLogger(), &fixedResolver{}, executor)
	result, err := svc.Restore(context.Background(), testProfile(), testSettings(),
		filepath.Join(t.TempDir(), "nope.dump"))

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, pgerr.KindRestore, pgerr.Classify(err))
	assert.Empty(t, executor.invocations)
}

func TestRestore_ArtifactIsDirectory(t *testing.T) {
	executor := &scriptedExecutor{}

	svc := NewWithExecutor(testLogger(), &fixedResolver{}, executor)
	_, err := svc.Restore(context.Background(), testProfile(), testSettings(), t.TempDir())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a regular file")
	assert.Empty(t, executor.invocations)
}
