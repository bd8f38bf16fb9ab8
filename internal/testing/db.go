// Package testing provides testing utilities and helpers for the compass project.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/aristath/compass/internal/database"
)

// NewTestDB creates a temporary SQLite database for testing with automatic schema migration.
// Returns the database instance and a cleanup function that closes the connection
// and removes the file. The cleanup function can be called multiple times safely.
//
// Supported schema names:
//   - "app" - applies app_schema.sql
//   - "cache" - applies cache_schema.sql
//   - Unknown names - creates empty database (no schema applied)
func NewTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	db, tmpPath := openTempDB(t, name)

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db, cleanupFunc(t, db, tmpPath)
}

// NewTestDBWithSchema creates a temporary SQLite database with a custom schema
// executed directly instead of the schema files.
func NewTestDBWithSchema(t *testing.T, name string, schema string) (*database.DB, func()) {
	t.Helper()

	db, tmpPath := openTempDB(t, name)

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			_ = db.Close()
			_ = os.Remove(tmpPath)
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db, cleanupFunc(t, db, tmpPath)
}

// Temporary files rather than :memory: so every pooled connection sees the same database
func openTempDB(t *testing.T, name string) (*database.DB, string) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("test_%s_*.db", name))
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	profile := database.ProfileStandard
	if name == "cache" {
		profile = database.ProfileCache
	}

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	return db, tmpPath
}

func cleanupFunc(t *testing.T, db *database.DB, tmpPath string) func() {
	closed := false
	return func() {
		if closed {
			return
		}
		closed = true
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database: %v", err)
		}
		for _, p := range []string{tmpPath, tmpPath + "-wal", tmpPath + "-shm"} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				t.Logf("Warning: Failed to remove temporary database file %s: %v", p, err)
			}
		}
	}
}
