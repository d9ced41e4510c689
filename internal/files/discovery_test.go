package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, modTime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("Time,Flow\n"), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
	return path
}

func TestListExports_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	writeFile(t, dir, "old.csv", base.Add(-2*time.Hour))
	writeFile(t, dir, "new.csv", base)
	writeFile(t, dir, "mid.xlsx", base.Add(-time.Hour))

	d := NewDiscovery(nil)
	exports, err := d.ListExports(dir)
	require.NoError(t, err)

	require.Len(t, exports, 3)
	assert.Equal(t, "new.csv", exports[0].Name)
	assert.Equal(t, "mid.xlsx", exports[1].Name)
	assert.Equal(t, "old.csv", exports[2].Name)
}

func TestListExports_SkipsNonExports(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "export.csv", now)
	writeFile(t, dir, "notes.pdf", now)
	writeFile(t, dir, "~$export.xlsx", now)
	writeFile(t, dir, ".hidden.csv", now)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	d := NewDiscovery(nil)
	exports, err := d.ListExports(dir)
	require.NoError(t, err)

	require.Len(t, exports, 1)
	assert.Equal(t, "export.csv", exports[0].Name)
}

func TestLatestExport(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	writeFile(t, dir, "a.csv", base.Add(-time.Hour))
	latest := writeFile(t, dir, "b.csv", base)

	d := NewDiscovery(nil)
	export, err := d.LatestExport(dir)
	require.NoError(t, err)
	assert.Equal(t, latest, export.Path)
}

func TestLatestExport_EmptyDir(t *testing.T) {
	d := NewDiscovery(nil)
	_, err := d.LatestExport(t.TempDir())
	assert.Error(t, err)
}
