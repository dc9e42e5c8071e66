package credentials_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantum-inspire/qi-go/credentials"
	"github.com/stretchr/testify/require"
)

const testHost = "https://api.quantum-inspire.com"

func testCredential() credentials.Credential {
	return credentials.Credential{
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ClientID:     "qi-client",
		TokenURL:     "https://auth.example.com/token",
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := credentials.NewStore(t.TempDir())

	want := testCredential()
	require.NoError(t, store.Save(testHost, want))

	got, err := store.Load(testHost)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadUnknownHost(t *testing.T) {
	store := credentials.NewStore(t.TempDir())

	require.NoError(t, store.Save(testHost, testCredential()))

	_, err := store.Load("https://beta.quantum-inspire.com")
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestLoadWithoutFile(t *testing.T) {
	store := credentials.NewStore(t.TempDir())

	_, err := store.Load(testHost)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestSaveReplacesExistingEntry(t *testing.T) {
	store := credentials.NewStore(t.TempDir())

	first := testCredential()
	require.NoError(t, store.Save(testHost, first))

	second := first
	second.AccessToken = "access-789"
	require.NoError(t, store.Save(testHost, second))

	got, err := store.Load(testHost)
	require.NoError(t, err)
	require.Equal(t, "access-789", got.AccessToken)
}

func TestSaveKeepsOtherHosts(t *testing.T) {
	store := credentials.NewStore(t.TempDir())
	beta := "https://beta.quantum-inspire.com"

	require.NoError(t, store.Save(testHost, testCredential()))
	other := testCredential()
	other.AccessToken = "beta-token"
	require.NoError(t, store.Save(beta, other))

	got, err := store.Load(testHost)
	require.NoError(t, err)
	require.Equal(t, "access-123", got.AccessToken)
}

func TestClear(t *testing.T) {
	store := credentials.NewStore(t.TempDir())

	require.NoError(t, store.Save(testHost, testCredential()))
	require.NoError(t, store.Clear(testHost))

	_, err := store.Load(testHost)
	require.ErrorIs(t, err, credentials.ErrNotFound)
}

func TestClearMissingEntryIsNoop(t *testing.T) {
	store := credentials.NewStore(t.TempDir())
	require.NoError(t, store.Clear(testHost))
}

func TestNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	store := credentials.NewStore(dir)

	require.NoError(t, store.Save(testHost, testCredential()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "credentials.json", entries[0].Name())
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()
	store := credentials.NewStore(dir)

	require.NoError(t, store.Save(testHost, testCredential()))

	info, err := os.Stat(filepath.Join(dir, "credentials.json"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUnreadableFileSurfacesStorageError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := credentials.NewStore(dir)
	_, err := store.Load(testHost)

	var storageErr *credentials.StorageError
	require.ErrorAs(t, err, &storageErr)
}

func TestUnwritableDirSurfacesStorageError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { os.Chmod(dir, 0o700) })

	store := credentials.NewStore(dir)
	err := store.Save(testHost, testCredential())

	var storageErr *credentials.StorageError
	require.ErrorAs(t, err, &storageErr)
}
