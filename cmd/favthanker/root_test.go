package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"favthanker/pkg/auth"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"run"},
		{"watch"},
		{"status"},
		{"auth", "login"},
		{"auth", "logout"},
		{"auth", "list"},
		{"config", "init"},
		{"config", "show"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.NotNil(t, loginCmd.Flags().Lookup("cookies"))
	assert.Equal(t, "@every 6h", watchCmd.Flags().Lookup("cron").DefValue)
}

func TestStoredAccount(t *testing.T) {
	manager, store := auth.NewMockManager()

	account, err := storedAccount(manager, "")
	require.NoError(t, err)
	assert.Nil(t, account)

	require.NoError(t, store.Store(&auth.Account{Username: "Operator", CookieA: "aaaa", CookieB: "bbbb"}))

	account, err = storedAccount(manager, "")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "Operator", account.Username)

	account, err = storedAccount(manager, "someone_else")
	require.NoError(t, err)
	assert.Nil(t, account)
}
