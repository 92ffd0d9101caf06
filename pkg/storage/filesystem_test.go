package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveOpenDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("backup_1.json", []byte(`[{"name":"Asha"}]`))
	require.NoError(t, err)
	assert.Equal(t, "backup_1.json", name)

	file, err := store.Open("backup_1.json")
	require.NoError(t, err)
	defer file.Close()

	data, err := os.ReadFile(file.Name())
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Asha"}]`, string(data))

	require.NoError(t, store.Delete("backup_1.json"))
	_, err = store.Open("backup_1.json")
	assert.Error(t, err)
}

func TestLocalStorageList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("backup_old.json", []byte("{}"))
	require.NoError(t, err)
	old := filepath.Join(dir, "backup_old.json")
	require.NoError(t, os.Chtimes(old, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	_, err = store.Save("backup_new.json", []byte("{}"))
	require.NoError(t, err)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "backup_new.json", files[0].Name)
	assert.Equal(t, "backup_old.json", files[1].Name)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.Save("backup_old.json", []byte("{}"))
	require.NoError(t, err)
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "backup_old.json"), stale, stale))

	_, err = store.Save("backup_new.json", []byte("{}"))
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"backup_old.json"}, deleted)

	files, err := store.List()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "backup_new.json", files[0].Name)
}
