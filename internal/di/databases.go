// Package di provides dependency injection for database initialization.
package di

import (
	"fmt"
	"path/filepath"

	"github.com/aristath/compass/internal/config"
	"github.com/aristath/compass/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens and migrates both databases and returns a
// container holding them
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. app.db - users, decisions, portfolios and positions
	appDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "app.db"),
		Profile: database.ProfileStandard,
		Name:    "app",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app database: %w", err)
	}
	container.AppDB = appDB

	// 2. cache.db - durable commentary entries; safe to delete
	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		appDB.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{appDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			appDB.Close()
			cacheDB.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().
		Str("data_dir", cfg.DataDir).
		Msg("Databases initialized")

	return container, nil
}
