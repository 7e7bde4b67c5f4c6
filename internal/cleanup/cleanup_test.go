package cleanup_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/media-archiver/internal/cleanup"
	"github.com/jonesrussell/media-archiver/internal/logger"
)

func TestRemove_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staged.tmp")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	m := cleanup.NewManager(dir, time.Hour, logger.NewNopLogger())

	require.NoError(t, m.Remove(path))
	assert.NoFileExists(t, path)

	// Removing again must not be an error.
	assert.NoError(t, m.Remove(path))
}

func TestRemove_EmptyPath(t *testing.T) {
	m := cleanup.NewManager(t.TempDir(), time.Hour, logger.NewNopLogger())
	assert.NoError(t, m.Remove(""))
}

func TestSweep_RemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()

	stale := filepath.Join(dir, "stale.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	fresh := filepath.Join(dir, "fresh.tmp")
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o600))

	m := cleanup.NewManager(dir, time.Hour, logger.NewNopLogger())
	m.Sweep()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
}

func TestStartSweep_InvalidSpec(t *testing.T) {
	m := cleanup.NewManager(t.TempDir(), time.Hour, logger.NewNopLogger())
	assert.Error(t, m.StartSweep("not a cron spec"))
}

func TestStartSweep_EmptySpecDisabled(t *testing.T) {
	m := cleanup.NewManager(t.TempDir(), time.Hour, logger.NewNopLogger())
	assert.NoError(t, m.StartSweep(""))
	m.StopSweep()
}
