package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"add wallet lock reason":   "add_wallet_lock_reason",
		"Add-Withdrawal-Index":     "add_withdrawal_index",
		"INVOICE__ITEMS":           "invoice_items",
		"  padded  ":               "padded",
		"drop!@#legacy":            "droplegacy",
		"_leading and trailing_":   "leading_and_trailing",
		"ünïcode only":             "ncode_only",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, slugify(in), in)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	mf, err := CreateMigration(dir, "add wallet lock reason", "Store why a wallet was locked", now)
	require.NoError(t, err)

	assert.Equal(t, "20260301093000", mf.Version)
	assert.Equal(t, filepath.Join(dir, "20260301093000_add_wallet_lock_reason.up.sql"), mf.UpPath)
	assert.Equal(t, filepath.Join(dir, "20260301093000_add_wallet_lock_reason.down.sql"), mf.DownPath)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- add wallet lock reason")
	assert.Contains(t, string(up), "-- Store why a wallet was locked")
	assert.Contains(t, string(up), "BEGIN;")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "(rollback)")
}

func TestCreateMigration_Errors(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	_, err := CreateMigration(dir, "!!!", "", now)
	assert.Error(t, err)

	_, err = CreateMigration(dir, "same", "", now)
	require.NoError(t, err)
	_, err = CreateMigration(dir, "same", "", now)
	assert.Error(t, err, "existing files are never overwritten")
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"20260301090100_reference_tables.up.sql",
		"20260301090100_reference_tables.down.sql",
		"20260301090000_ledger_tables.up.sql",
		"20260301090000_ledger_tables.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.up.sql"), 0o755))

	names, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260301090000_ledger_tables", "20260301090100_reference_tables"}, names)

	names, err = ListMigrations(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRepositoryMigrationsArePaired(t *testing.T) {
	names, err := ListMigrations(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		_, err := os.Stat(filepath.Join("..", "..", "..", "migrations", name+".down.sql"))
		assert.NoError(t, err, "%s has no down migration", name)
	}
}
