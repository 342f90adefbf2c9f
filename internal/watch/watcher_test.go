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

func waitForChange(t *testing.T, changes <-chan Change, path string) Change {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Path == path {
				return c
			}
		case <-deadline:
			t.Fatalf("no change for %s", path)
			return Change{}
		}
	}
}

func TestWatcher_EmitsDebouncedChanges(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(dir, 50*time.Millisecond)
	changes := make(chan Change, 10)
	require.NoError(t, w.Start(ctx, changes))
	defer w.Stop()

	path := filepath.Join(dir, "case.yaml")
	require.NoError(t, os.WriteFile(path, []byte("test_case: {}"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("test_case: {id: x}"), 0o644))

	change := waitForChange(t, changes, path)
	assert.Equal(t, OperationCreate, change.Operation)
}

func TestWatcher_IgnoresNonYAML(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(dir, 20*time.Millisecond)
	changes := make(chan Change, 10)
	require.NoError(t, w.Start(ctx, changes))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case c := <-changes:
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(dir, 20*time.Millisecond)
	changes := make(chan Change, 10)
	require.NoError(t, w.Start(ctx, changes))
	defer w.Stop()

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// give the watcher time to register the new directory
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(sub, "case.yml")
	require.NoError(t, os.WriteFile(path, []byte("x: 1"), 0o644))

	waitForChange(t, changes, path)
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), 0)
	err := w.Start(context.Background(), make(chan Change, 1))
	assert.Error(t, err)
	w.Stop()
}

func TestMergeOperations(t *testing.T) {
	assert.Equal(t, OperationCreate, mergeOperations(OperationCreate, OperationUpdate))
	assert.Equal(t, OperationDelete, mergeOperations(OperationCreate, OperationDelete))
	assert.Equal(t, OperationDelete, mergeOperations(OperationUpdate, OperationDelete))
	assert.Equal(t, OperationCreate, mergeOperations(OperationDelete, OperationCreate))
}
