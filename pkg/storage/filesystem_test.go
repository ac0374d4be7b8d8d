package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, baseDir, name, content string) string {
	t.Helper()
	path := filepath.Join(baseDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLocalStorageOpenAndExists(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	writeArtifact(t, dir, "FAAS/FAAS_ARF-001.pdf", "pdf-bytes")

	require.True(t, store.Exists("FAAS/FAAS_ARF-001.pdf"))
	require.False(t, store.Exists("FAAS/missing.pdf"))

	file, err := store.Open("FAAS/FAAS_ARF-001.pdf")
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, "pdf-bytes", string(data))
}

func TestLocalStorageDeleteMissingFile(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Delete("FAAS/already-gone.xlsx"))
}

func TestLocalStorageDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	writeArtifact(t, dir, "UNIRRIG/old.xlsx", "xlsx-bytes")
	require.NoError(t, store.Delete("UNIRRIG/old.xlsx"))
	require.False(t, store.Exists("UNIRRIG/old.xlsx"))
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	stale := writeArtifact(t, dir, "FAAS/stale.pdf", "old")
	writeArtifact(t, dir, "FAAS/fresh.pdf", "new")

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join("FAAS", "stale.pdf")}, deleted)
	require.False(t, store.Exists("FAAS/stale.pdf"))
	require.True(t, store.Exists("FAAS/fresh.pdf"))
}
