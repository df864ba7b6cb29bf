package source

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suxatcode/fsgraph/fstree"
)

func testWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	initial, err := Scan(dir)
	require.NoError(t, err)
	w, err := NewWatcher(dir, initial)
	require.NoError(t, err)
	w.debounce = 50 * time.Millisecond
	return w
}

func receiveDiff(t *testing.T, ch <-chan fstree.Diff) fstree.Diff {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "diff channel closed early")
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("no diff within timeout")
		return fstree.Diff{}
	}
}

func addedIDs(d fstree.Diff) []string {
	ids := []string{}
	for _, n := range d.Added {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestWatcher_EmitsDebouncedDiff(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	w := testWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// a burst of changes must collapse into a single rescan
	writeFile(t, filepath.Join(dir, "new.txt"), "x")
	writeFile(t, filepath.Join(dir, "a.txt"), "hello world")

	diff := receiveDiff(t, w.Diffs())
	assert.Contains(t, addedIDs(diff), "new.txt")
	select {
	case d, ok := <-w.Diffs():
		if ok {
			t.Fatalf("burst produced a second diff: %+v", d)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

// directories appearing after startup must be registered, or changes inside
// them go unnoticed
func TestWatcher_WatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	w := testWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "hi")
	diff := receiveDiff(t, w.Diffs())
	assert.Contains(t, addedIDs(diff), "sub")

	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "deeper")
	diff = receiveDiff(t, w.Diffs())
	assert.Contains(t, addedIDs(diff), "sub/c.txt")
}

func TestWatcher_ClosesOnCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	w := testWatcher(t, dir)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)

	// cancel while a debounce timer may still be in flight
	writeFile(t, filepath.Join(dir, "new.txt"), "x")
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-w.Diffs():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("diff channel did not close after cancel")
		}
	}
}
