package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(name string) *Account {
	return &Account{Username: name, CookieA: "cookie-a-1234567890", CookieB: "cookie-b-0987654321"}
}

func TestManagerStoreRetrieveDelete(t *testing.T) {
	manager, store := NewMockManager()

	require.NoError(t, manager.Store(testAccount("Operator")))
	assert.Equal(t, 1, store.Count())

	got, err := manager.Retrieve("operator")
	require.NoError(t, err)
	assert.Equal(t, "cookie-a-1234567890", got.CookieA)
	assert.False(t, got.LastModified.IsZero())

	require.NoError(t, manager.Delete("OPERATOR"))
	_, err = manager.Retrieve("operator")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerRejectsIncompleteAccount(t *testing.T) {
	manager, _ := NewMockManager()
	assert.Error(t, manager.Store(&Account{Username: "x", CookieA: "a"}))
	assert.Error(t, manager.Store(&Account{CookieA: "a", CookieB: "b"}))
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	broken := NewMockStore()
	broken.StoreError = errors.New("keychain locked")
	working := NewMockStore()
	manager := NewManagerWithStores(broken, working)

	require.NoError(t, manager.Store(testAccount("op")))
	assert.Equal(t, 0, broken.Count())
	assert.Equal(t, 1, working.Count())
}

func TestManagerListNewestFirst(t *testing.T) {
	first, second := NewMockStore(), NewMockStore()
	older := testAccount("alpha")
	older.LastModified = time.Now().Add(-time.Hour)
	newer := testAccount("beta")
	newer.LastModified = time.Now()
	require.NoError(t, first.Store(older))
	require.NoError(t, second.Store(newer))

	manager := NewManagerWithStores(first, second)
	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "beta", accounts[0].Username)

	def, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "beta", def.Username)
}

func TestManagerTracksRotation(t *testing.T) {
	manager, _ := NewMockManager()

	require.NoError(t, manager.Store(testAccount("op")))
	first, err := manager.Retrieve("op")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Rotations)
	assert.False(t, first.RotatedAt.IsZero())

	// the same pair saved again after a resumed session is not a rotation
	require.NoError(t, manager.Store(testAccount("op")))
	same, err := manager.Retrieve("op")
	require.NoError(t, err)
	assert.Equal(t, 0, same.Rotations)
	assert.Equal(t, first.RotatedAt, same.RotatedAt)

	rotated := testAccount("op")
	rotated.CookieB = "cookie-b-new-pair"
	require.NoError(t, manager.Store(rotated))
	got, err := manager.Retrieve("op")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Rotations)
	assert.Equal(t, "cookie-b-new-pair", got.CookieB)
	assert.False(t, got.RotatedAt.Before(first.RotatedAt))
}

func TestCookieVault(t *testing.T) {
	t.Setenv("FAVTHANKER_PASSPHRASE", "test-passphrase")
	dir := filepath.Join(t.TempDir(), "cookies")

	vault, err := NewCookieVault(dir)
	require.NoError(t, err)

	op := testAccount("Operator")
	op.Rotations = 3
	require.NoError(t, vault.Store(op))
	require.NoError(t, vault.Store(testAccount("second")))
	assert.True(t, vault.Exists("operator"))
	assert.FileExists(t, filepath.Join(dir, "operator.enc"))
	assert.FileExists(t, filepath.Join(dir, "second.enc"))

	raw, err := os.ReadFile(filepath.Join(dir, "operator.enc"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "cookie-a-1234567890")

	reopened, err := NewCookieVault(dir)
	require.NoError(t, err)
	got, err := reopened.Retrieve("OPERATOR")
	require.NoError(t, err)
	assert.Equal(t, "cookie-b-0987654321", got.CookieB)
	assert.Equal(t, 3, got.Rotations)

	list, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	t.Setenv("FAVTHANKER_PASSPHRASE", "wrong")
	wrong, err := NewCookieVault(dir)
	require.NoError(t, err)
	_, err = wrong.Retrieve("operator")
	assert.Error(t, err)

	require.NoError(t, reopened.Delete("operator"))
	assert.NoFileExists(t, filepath.Join(dir, "operator.enc"))
	assert.ErrorIs(t, reopened.Delete("operator"), ErrCredentialsNotFound)
	_, err = reopened.Retrieve("operator")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestCookieVaultRejectsPathNames(t *testing.T) {
	t.Setenv("FAVTHANKER_PASSPHRASE", "test-passphrase")
	vault, err := NewCookieVault(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, vault.Store(testAccount("../escape")), ErrInvalidCredentials)
	assert.ErrorIs(t, vault.Store(testAccount(".passphrase")), ErrInvalidCredentials)
	_, err = vault.Retrieve("")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCookieVaultGeneratesPassphrase(t *testing.T) {
	t.Setenv("FAVTHANKER_PASSPHRASE", "")
	dir := t.TempDir()
	vault, err := NewCookieVault(dir)
	require.NoError(t, err)
	require.NoError(t, vault.Store(testAccount("op")))
	assert.FileExists(t, filepath.Join(dir, ".passphrase"))

	list, err := vault.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv("FAVTHANKER_USERNAME", "EnvUser")
	t.Setenv("FAVTHANKER_COOKIE_A", "env-a")
	t.Setenv("FAVTHANKER_COOKIE_B", "env-b")

	store := NewEnvironmentStore()
	got, err := store.Retrieve("envuser")
	require.NoError(t, err)
	assert.Equal(t, "env-a", got.CookieA)

	_, err = store.Retrieve("someone-else")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	assert.ErrorIs(t, store.Store(testAccount("x")), ErrStoreUnavailable)

	list, err := store.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSanitizeAccount(t *testing.T) {
	s := SanitizeAccount(testAccount("op"))
	assert.Equal(t, "op", s.Username)
	assert.Equal(t, "cook...7890", s.CookieA)
	assert.Equal(t, "********", maskString("short"))
	assert.Nil(t, SanitizeAccount(nil))
}

func TestWriteCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteCookieGuide(&buf, "https://example.com/")
	assert.Contains(t, buf.String(), "FAVTHANKER_COOKIE_A")
	assert.Contains(t, buf.String(), "https://example.com/")
}
