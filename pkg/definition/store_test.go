package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regenera-io/regenera/pkg/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	return NewStore(log.WithModule("test"))
}

func TestStore_LoadDirectory(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "linear.json"), []byte(linearProcess), 0o600)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "parallel.json"), []byte(parallelProcess), 0o600)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600)
	require.NoError(t, err)

	store := newTestStore(t)
	require.NoError(t, store.LoadDirectory(dir))

	assert.Equal(t, []string{"linear", "parallel"}, store.Names())
}

func TestStore_LoadDirectory_BadDefinition(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"name": "x"}`), 0o600)
	require.NoError(t, err)

	store := newTestStore(t)
	err = store.LoadDirectory(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestStore_LoadDirectory_MissingPath(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.LoadDirectory(filepath.Join(t.TempDir(), "missing")))
}
