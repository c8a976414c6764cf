package retention

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func writeAged(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("dump"), 0o600))
	mtime := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSweep_RemovesOnlyExpiredArtifacts(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "orders_20240101000000.dump", 10*24*time.Hour)
	fresh := writeAged(t, dir, "orders_20240110000000.dump", 2*24*time.Hour)

	svc := New(testLogger())
	result, err := svc.Sweep(context.Background(), dir, 7*24*time.Hour, "")

	require.NoError(t, err)
	assert.Equal(t, []string{old}, result.Removed)
	assert.Equal(t, 1, result.Kept)

	_, statErr := os.Stat(old)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(fresh)
	assert.NoError(t, statErr)
}

func TestSweep_NeverRemovesCurrentRunArtifact(t *testing.T) {
	dir := t.TempDir()
	// Backdated beyond the window, e.g. a host with a skewed clock.
	current := writeAged(t, dir, "orders_20240101000000.dump", 30*24*time.Hour)

	svc := New(testLogger())
	result, err := svc.Sweep(context.Background(), dir, 7*24*time.Hour, current)

	require.NoError(t, err)
	assert.Empty(t, result.Removed)

	_, statErr := os.Stat(current)
	assert.NoError(t, statErr)
}

func TestSweep_CutoffIsStrict(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Now()

	// Exactly at the cutoff: not strictly older, so kept.
	boundary := writeAged(t, dir, "orders_boundary.dump", 0)
	mtime := fixed.Add(-7 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(boundary, mtime, mtime))

	svc := NewWithClock(testLogger(), func() time.Time { return fixed })
	result, err := svc.Sweep(context.Background(), dir, 7*24*time.Hour, "")

	require.NoError(t, err)
	assert.Empty(t, result.Removed)
	assert.Equal(t, 1, result.Kept)
}

func TestSweep_IgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	notes := writeAged(t, dir, "README.txt", 30*24*time.Hour)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old_dumps.dump"), 0o750))

	svc := New(testLogger())
	result, err := svc.Sweep(context.Background(), dir, 7*24*time.Hour, "")

	require.NoError(t, err)
	assert.Empty(t, result.Removed)

	_, statErr := os.Stat(notes)
	assert.NoError(t, statErr)
}

func TestSweep_SqlExtensionAlsoSwept(t *testing.T) {
	dir := t.TempDir()
	old := writeAged(t, dir, "orders_legacy.sql", 30*24*time.Hour)

	svc := New(testLogger())
	result, err := svc.Sweep(context.Background(), dir, 7*24*time.Hour, "")

	require.NoError(t, err)
	assert.Equal(t, []string{old}, result.Removed)
}

func TestSweep_MissingDirectory(t *testing.T) {
	svc := New(testLogger())
	_, err := svc.Sweep(context.Background(), filepath.Join(t.TempDir(), "nope"), time.Hour, "")

	assert.Error(t, err)
}
