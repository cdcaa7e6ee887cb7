package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(root, Options{Debounce: 30 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	// Give the recursive add a moment before mutating the tree.
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitForEvents(t *testing.T, w *Watcher, timeout time.Duration) []Event {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(timeout):
		t.Fatal("no events before timeout")
		return nil
	}
}

func TestWatcher_DetectsNewMarkdownFile(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	path := filepath.Join(root, "new.md")
	require.NoError(t, os.WriteFile(path, []byte("# New"), 0o644))

	batch := waitForEvents(t, w, 3*time.Second)
	require.NotEmpty(t, batch)
	assert.Equal(t, path, batch[0].Path)
	assert.Equal(t, OpCreate, batch[0].Op)
}

func TestWatcher_IgnoresNonMatchingFiles(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "scratch.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "doc.md"), []byte("# Doc"), 0o644))

	batch := waitForEvents(t, w, 3*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, filepath.Join(root, "doc.md"), batch[0].Path)
}

func TestWatcher_DetectsDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Doc"), 0o644))

	w := startWatcher(t, root)
	require.NoError(t, os.Remove(path))

	batch := waitForEvents(t, w, 3*time.Second)
	require.NotEmpty(t, batch)
	assert.Equal(t, OpDelete, batch[0].Op)
}

func TestWatcher_MissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent"), Options{}, nil)
	assert.Error(t, err)
}

func TestWatcher_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.md")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	_, err := New(path, Options{}, nil)
	assert.Error(t, err)
}

func TestWatcher_StopTwice(t *testing.T) {
	w, err := New(t.TempDir(), Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_Mechanism(t *testing.T) {
	w, err := New(t.TempDir(), Options{}, nil)
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()
	assert.Contains(t, []string{"fsnotify", "polling"}, w.Mechanism())
}
