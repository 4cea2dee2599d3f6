package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/db"
	"github.com/vytor/ceplayer/internal/testutil"
)

func TestOpen_AppliesMigrationsOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ceplayer.db")

	first, err := db.Open(path)
	require.NoError(t, err)
	versions, err := first.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_learner_indexes.sql"}, versions)
	testutil.MustClose(t, first)

	second, err := db.Open(path)
	require.NoError(t, err)
	defer testutil.MustClose(t, second)

	again, err := second.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, versions, again, "reopening does not re-apply migrations")
}

func TestMigrate_CreatesTables(t *testing.T) {
	sqlDB := testutil.NewTestDB(t)
	defer testutil.MustClose(t, sqlDB)

	for _, table := range []string{"learners", "ledgers", "schema_migrations"} {
		var name string
		err := sqlDB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}
