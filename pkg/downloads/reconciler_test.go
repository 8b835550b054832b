package downloads

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/surf/pkg/logging"
)

const scratchPattern = "browser_agent_*/agent_data"

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	logging.SetLogDirectory(t.TempDir())
	logger, err := logging.NewLogger("test")
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func newTestReconciler(t *testing.T, scratchRoot, downloadsRoot string) *Reconciler {
	t.Helper()
	r, err := NewReconciler(scratchRoot, scratchPattern, downloadsRoot, testLogger(t))
	require.NoError(t, err)
	return r
}

func makeScratchFile(t *testing.T, scratchRoot, name, content string) string {
	t.Helper()
	dir := filepath.Join(scratchRoot, "browser_agent_abc123", "agent_data")
	require.NoError(t, os.MkdirAll(dir, 0750))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return dir
}

func TestNewReconciler_InvalidPattern(t *testing.T) {
	_, err := NewReconciler(t.TempDir(), "[", t.TempDir(), testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scratch pattern")
}

func TestReconcile_NoScratchDirs(t *testing.T) {
	r := newTestReconciler(t, t.TempDir(), t.TempDir())
	moved := r.Reconcile(t.TempDir())
	assert.Empty(t, moved)
}

func TestReconcile_MovesFiles(t *testing.T) {
	scratchRoot := t.TempDir()
	downloadsRoot := t.TempDir()
	scratchDir := makeScratchFile(t, scratchRoot, "report.pdf", "pdf-bytes")

	target := filepath.Join(downloadsRoot, "customer_1", "task_ab12cd34")
	require.NoError(t, os.MkdirAll(target, 0750))

	r := newTestReconciler(t, scratchRoot, downloadsRoot)
	moved := r.Reconcile(target)

	require.Len(t, moved, 1)
	assert.Equal(t, filepath.Join("customer_1", "task_ab12cd34", "report.pdf"), moved[0])

	data, err := os.ReadFile(filepath.Join(target, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(data))

	// Scratch dir is gone afterwards.
	_, err = os.Stat(scratchDir)
	assert.True(t, os.IsNotExist(err))
}

func TestReconcile_NameCollisionGetsTimestampSuffix(t *testing.T) {
	scratchRoot := t.TempDir()
	downloadsRoot := t.TempDir()
	makeScratchFile(t, scratchRoot, "report.pdf", "new-bytes")

	target := filepath.Join(downloadsRoot, "default", "task_1")
	require.NoError(t, os.MkdirAll(target, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(target, "report.pdf"), []byte("old-bytes"), 0644))

	r := newTestReconciler(t, scratchRoot, downloadsRoot)
	r.now = func() time.Time { return time.Date(2024, 1, 31, 15, 44, 32, 0, time.UTC) }

	moved := r.Reconcile(target)
	require.Len(t, moved, 1)
	assert.Equal(t, filepath.Join("default", "task_1", "report_20240131_154432.pdf"), moved[0])

	// Both the original and the renamed file exist.
	original, err := os.ReadFile(filepath.Join(target, "report.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "old-bytes", string(original))

	renamed, err := os.ReadFile(filepath.Join(target, "report_20240131_154432.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "new-bytes", string(renamed))
}

func TestReconcile_MultipleScratchDirs(t *testing.T) {
	scratchRoot := t.TempDir()
	downloadsRoot := t.TempDir()

	dirA := filepath.Join(scratchRoot, "browser_agent_a", "agent_data")
	dirB := filepath.Join(scratchRoot, "browser_agent_b", "agent_data")
	require.NoError(t, os.MkdirAll(dirA, 0750))
	require.NoError(t, os.MkdirAll(dirB, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(dirA, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "b.txt"), []byte("b"), 0644))

	target := filepath.Join(downloadsRoot, "task")
	require.NoError(t, os.MkdirAll(target, 0750))

	r := newTestReconciler(t, scratchRoot, downloadsRoot)
	moved := r.Reconcile(target)

	assert.Len(t, moved, 2)
	assert.FileExists(t, filepath.Join(target, "a.txt"))
	assert.FileExists(t, filepath.Join(target, "b.txt"))
}

func TestReconcile_IgnoresNonMatchingDirs(t *testing.T) {
	scratchRoot := t.TempDir()
	other := filepath.Join(scratchRoot, "unrelated_dir", "agent_data")
	require.NoError(t, os.MkdirAll(other, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(other, "keep.txt"), []byte("x"), 0644))

	r := newTestReconciler(t, scratchRoot, t.TempDir())
	moved := r.Reconcile(t.TempDir())

	assert.Empty(t, moved)
	assert.FileExists(t, filepath.Join(other, "keep.txt"))
}

func TestReconcile_SkipsSubdirectoriesInScratch(t *testing.T) {
	scratchRoot := t.TempDir()
	scratchDir := makeScratchFile(t, scratchRoot, "file.txt", "x")
	require.NoError(t, os.MkdirAll(filepath.Join(scratchDir, "nested"), 0750))

	target := t.TempDir()
	r := newTestReconciler(t, scratchRoot, target)
	moved := r.Reconcile(target)

	require.Len(t, moved, 1)
}

func TestCollisionName(t *testing.T) {
	r := newTestReconciler(t, t.TempDir(), t.TempDir())
	r.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 5, 0, time.UTC) }

	assert.Equal(t, "report_20240601_100005.pdf", r.collisionName("report.pdf"))
	assert.Equal(t, "archive.tar_20240601_100005.gz", r.collisionName("archive.tar.gz"))
	assert.Equal(t, "noext_20240601_100005", r.collisionName("noext"))
}
