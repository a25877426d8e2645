// Package testutil opens throwaway SQLite databases for repository and
// pipeline tests.
package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"homehub/database"
)

// Database returns a migrated database backed by a file in tb.TempDir().
func Database(tb testing.TB) *database.Database {
	tb.Helper()

	db, err := database.OpenSQLite(filepath.Join(tb.TempDir(), "automation.db"))
	if err != nil {
		tb.Fatalf("failed to open test db: %v", err)
	}
	if err := db.InitSchema(); err != nil {
		tb.Fatalf("failed to migrate test db: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// DB is a shortcut for Database(tb).DB().
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	return Database(tb).DB()
}
