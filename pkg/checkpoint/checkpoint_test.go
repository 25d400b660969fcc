package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exists(t *testing.T, mgr *Manager) bool {
	t.Helper()
	_, err := os.Stat(mgr.Path())
	return err == nil
}

func TestCheckpointLifecycle(t *testing.T) {
	mgr, err := NewManager("Operator", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "operator.checkpoint.json", filepath.Base(mgr.Path()))

	loaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	cp, err := mgr.Create("Operator", 5)
	require.NoError(t, err)
	_, err = uuid.Parse(cp.RunID)
	require.NoError(t, err)
	assert.True(t, exists(t, mgr))

	batch := []string{"/view/1/", "/view/2/", "/view/3/"}
	require.NoError(t, mgr.StartBatch(cp, batch))
	require.NoError(t, mgr.RecordResolved(cp, []string{"/view/1/", "/view/3/"}, 2))

	loaded, err = mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, cp.RunID, loaded.RunID)
	assert.Equal(t, 5, loaded.Total)
	assert.Equal(t, 2, loaded.Processed)
	assert.Equal(t, batch, loaded.Batch)
	assert.True(t, loaded.IsResolved("/view/1/"))
	assert.False(t, loaded.IsResolved("/view/2/"))

	// restarting the same batch keeps what was resolved
	require.NoError(t, mgr.StartBatch(loaded, []string{"/view/3/", "/view/2/", "/view/1/"}))
	assert.True(t, loaded.IsResolved("/view/3/"))

	require.NoError(t, mgr.BatchCleared(loaded))
	reloaded, err := mgr.Load()
	require.NoError(t, err)
	assert.Empty(t, reloaded.Resolved)
	assert.Empty(t, reloaded.Batch)
	assert.Equal(t, 3, reloaded.Cleared)
	assert.Equal(t, 2, reloaded.Remaining())
	assert.Equal(t, 2, reloaded.Processed)

	require.NoError(t, mgr.Delete())
	assert.False(t, exists(t, mgr))
	require.NoError(t, mgr.Delete(), "deleting twice is not an error")
}

func TestStartBatchResetsOnDifferentBatch(t *testing.T) {
	mgr, err := NewManager("op", t.TempDir())
	require.NoError(t, err)
	cp, err := mgr.Create("op", 4)
	require.NoError(t, err)

	require.NoError(t, mgr.StartBatch(cp, []string{"/view/1/", "/view/2/"}))
	require.NoError(t, mgr.RecordResolved(cp, []string{"/view/1/"}, 1))

	require.NoError(t, mgr.StartBatch(cp, []string{"/view/1/", "/view/9/"}))
	assert.False(t, cp.IsResolved("/view/1/"))
	assert.Equal(t, []string{"/view/1/", "/view/9/"}, cp.Batch)
}

func TestResumable(t *testing.T) {
	cp := &Checkpoint{Version: formatVersion, Total: 4, Processed: 1, Batch: []string{"a", "b", "c", "d"}}

	assert.True(t, cp.Resumable(4, []string{"d", "c", "b", "a"}))
	assert.False(t, cp.Resumable(5, []string{"a", "b", "c", "d"}), "pending count changed")
	assert.False(t, cp.Resumable(4, []string{"a", "b", "c", "e"}), "batch changed")

	cleared := &Checkpoint{Version: formatVersion, Total: 6, Processed: 4, Cleared: 4}
	assert.True(t, cleared.Resumable(2, []string{"x", "y"}))
	assert.False(t, cleared.Resumable(6, []string{"x"}))

	done := &Checkpoint{Version: formatVersion, Total: 2, Processed: 2, Batch: []string{"a", "b"}}
	assert.False(t, done.Resumable(2, []string{"a", "b"}))

	legacy := &Checkpoint{Version: 1, Total: 2, Processed: 1}
	assert.False(t, legacy.Resumable(2, []string{"a", "b"}), "older formats keyed progress by name")
}

func TestDefaultDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	mgr, err := NewManager("op", "")
	require.NoError(t, err)
	assert.Contains(t, mgr.Path(), filepath.Join("favthanker", "checkpoints"))
}
