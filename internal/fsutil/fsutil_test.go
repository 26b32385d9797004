package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWriteFileAtomic verifies content replacement leaves no temporary files.
func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "receipt.yaml")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	err = WriteFileAtomic(filepath.Join(dir, "missing", "file"), []byte("x"), 0o600)
	require.Error(t, err)
}

// TestRemoveIfExists verifies missing paths are ignored.
func TestRemoveIfExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o600))
	require.True(t, Exists(file))

	require.NoError(t, RemoveIfExists(file, filepath.Join(dir, "never-existed")))
	require.False(t, Exists(file))
}
