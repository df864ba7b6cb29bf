package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suxatcode/fsgraph/fstree"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestScan(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "hi")

	s, err := Scan(dir)
	require.NoError(t, err)
	assert.Len(s.Nodes, 4)

	root, ok := s.Lookup(RootID)
	assert.True(ok)
	assert.Equal(fstree.Directory, root.Type)
	assert.Equal("", root.ParentID)

	a, ok := s.Lookup("a.txt")
	assert.True(ok)
	assert.Equal(fstree.File, a.Type)
	assert.Equal(int64(5), a.Size)
	assert.Equal(RootID, a.ParentID)

	sub, ok := s.Lookup("sub")
	assert.True(ok)
	assert.Equal(fstree.Directory, sub.Type)

	b, ok := s.Lookup("sub/b.txt")
	assert.True(ok)
	assert.Equal("sub", b.ParentID)
	assert.Equal(int64(2), b.Size)
}

func TestScan_MissingDir(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestScan_DiffAfterChange(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "hello")
	before, err := Scan(dir)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "a.txt"), "hello world")
	writeFile(t, filepath.Join(dir, "new.txt"), "x")
	after, err := Scan(dir)
	require.NoError(t, err)

	diff := fstree.DiffSnapshots(before, after)
	assert.Empty(diff.Removed)
	assert.Len(diff.Added, 1)
	assert.Equal("new.txt", diff.Added[0].ID)
	assert.Len(diff.Changed, 1)
	assert.Equal("a.txt", diff.Changed[0].ID)
	assert.Equal(int64(11), diff.Changed[0].Size)
}
