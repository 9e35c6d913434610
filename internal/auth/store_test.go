package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "creds", "credential.json"))
}

func TestStoreLoadMissingFile(t *testing.T) {
	cred, err := newTestStore(t).Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestStoreSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save(Credential{AccessToken: "tok", RefreshToken: "ref", ExpiresIn: 3600})
	require.NoError(t, err)
	assert.InDelta(t, time.Now().UnixMilli()+3600*1000, saved.ExpiresAt, 2000)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tok", loaded.AccessToken)
	assert.Equal(t, "ref", loaded.RefreshToken)
	assert.Equal(t, saved.ExpiresAt, loaded.ExpiresAt)
}

func TestStoreSavePermissions(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(Credential{AccessToken: "tok"})
	require.NoError(t, err)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestStoreSaveLeavesNoTempFiles(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(Credential{AccessToken: "tok"})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(store.Path()), entries[0].Name())
}

func TestStoreSaveRejectsInvalid(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save(Credential{RefreshToken: "ref"})
	require.Error(t, err)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr))
}

func TestStoreLoadMalformed(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0o600))

	_, err := store.Load()
	require.Error(t, err)
}

func TestStoreLoadStructurallyInvalid(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o700))
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"refresh_token":"ref"}`), 0o600))

	_, err := store.Load()
	require.Error(t, err)
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Clear())

	_, err := store.Save(Credential{AccessToken: "tok"})
	require.NoError(t, err)
	require.NoError(t, store.Clear())

	cred, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, cred)
}
