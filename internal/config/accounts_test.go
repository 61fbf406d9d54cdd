// File: internal/config/accounts_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAccounts(t *testing.T) {
	logger := zap.NewNop()

	t.Run("applies name and provider defaults", func(t *testing.T) {
		path := writeAccountsFile(t, `[
			{"username": "a", "password": "b"},
			{"name": "主号", "provider": "other.example", "username": "c", "password": "d"}
		]`)

		accounts, err := LoadAccounts(path, logger)
		require.NoError(t, err)
		require.Len(t, accounts, 2)

		assert.Equal(t, "账号1", accounts[0].Name)
		assert.Equal(t, "anyrouter.top", accounts[0].Provider)
		assert.Equal(t, "a", accounts[0].Username)
		assert.Equal(t, "b", accounts[0].Password)

		assert.Equal(t, "主号", accounts[1].Name)
		assert.Equal(t, "other.example", accounts[1].Provider)
	})

	t.Run("skips records without credentials", func(t *testing.T) {
		path := writeAccountsFile(t, `[
			{"username": "a"},
			{"password": "b"},
			{"username": "c", "password": "d"}
		]`)

		accounts, err := LoadAccounts(path, logger)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, "c", accounts[0].Username)
		// Ordinals count raw positions, so skipped entries still consume theirs.
		assert.Equal(t, "账号3", accounts[0].Name)
	})

	t.Run("skip only after trimming whitespace", func(t *testing.T) {
		path := writeAccountsFile(t, `[{"username": "  a  ", "password": "   "}]`)

		accounts, err := LoadAccounts(path, logger)
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})

	t.Run("empty array yields empty slice", func(t *testing.T) {
		path := writeAccountsFile(t, `[]`)

		accounts, err := LoadAccounts(path, logger)
		require.NoError(t, err)
		assert.Empty(t, accounts)
	})

	t.Run("missing file is an error", func(t *testing.T) {
		_, err := LoadAccounts(filepath.Join(t.TempDir(), "nope.json"), logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read accounts file")
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		path := writeAccountsFile(t, `{"username": "a"}`)

		_, err := LoadAccounts(path, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse accounts file")
	})
}
