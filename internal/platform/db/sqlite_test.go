package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSchema = fstest.MapFS{
	"001_things.sql": {Data: []byte(`CREATE TABLE thing (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
	"002_seed.sql":   {Data: []byte(`INSERT INTO thing (name) VALUES ('first');`)},
}

func TestOpenSQLite_AppliesMigrations(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, ":memory:", testSchema)
	require.NoError(t, err)
	defer sqlDB.Close()

	var count int
	require.NoError(t, sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM thing`).Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM _migrations`).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestApplySQLite_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "ehrcore.db")

	sqlDB, err := OpenSQLite(ctx, path, testSchema)
	require.NoError(t, err)
	require.NoError(t, ApplySQLite(ctx, sqlDB, testSchema))
	sqlDB.Close()

	reopened, err := OpenSQLite(ctx, path, testSchema)
	require.NoError(t, err)
	defer reopened.Close()

	var count int
	require.NoError(t, reopened.QueryRowContext(ctx, `SELECT COUNT(*) FROM thing`).Scan(&count))
	assert.Equal(t, 1, count, "seed migration must run once")
}

func TestApplySQLite_BadMigration(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := OpenSQLite(ctx, ":memory:", nil)
	require.NoError(t, err)
	defer sqlDB.Close()

	bad := fstest.MapFS{"001_bad.sql": {Data: []byte(`CREATE TABLE (`)}}
	err = ApplySQLite(ctx, sqlDB, bad)
	assert.ErrorContains(t, err, "001_bad.sql")
}
