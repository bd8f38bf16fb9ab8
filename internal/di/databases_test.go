package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aristath/compass/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeDatabases(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{DataDir: tmpDir}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	defer container.Close()

	assert.NotNil(t, container.AppDB)
	assert.NotNil(t, container.CacheDB)
	assert.Equal(t, "app", container.AppDB.Name())
	assert.Equal(t, "cache", container.CacheDB.Name())

	assert.FileExists(t, filepath.Join(tmpDir, "app.db"))
	assert.FileExists(t, filepath.Join(tmpDir, "cache.db"))
}

func TestInitializeDatabases_InvalidPath(t *testing.T) {
	// a regular file where the data directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	cfg := &config.Config{DataDir: filepath.Join(blocker, "data")}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, container)
}

func TestInitializeDatabases_SchemaMigration(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir()}

	container, err := InitializeDatabases(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	ctx := context.Background()
	for _, table := range []string{"users", "decisions", "portfolios", "positions"} {
		var name string
		err := container.AppDB.QueryRowContext(ctx,
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "app.db should have table %s", table)
	}

	var name string
	err = container.CacheDB.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='response_cache'",
	).Scan(&name)
	assert.NoError(t, err)
}
