// Package database provides connection management for the home automation hub.
//
// This package includes:
//   - Connection setup using GORM with SQLite (default) or PostgreSQL
//   - Schema migration for every table the hub persists
//   - Typed errors shared by the repositories
//
// Data Models:
//
//	All data models (ActionRecord, Pattern, Suggestion, Automation, ...) are
//	defined in the models_pkg package to avoid circular import dependencies.
//	Per-entity repositories live in sub-packages (actions, patterns, ...).
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"homehub/config"
	models "homehub/database/models_pkg"
)

// Database holds the GORM database connection
type Database struct {
	db *gorm.DB
}

// DB returns the underlying GORM database instance
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Connect opens the database selected by cfg.DatabaseDriver. The SQLite file
// and its parent directory are created on first access.
func Connect(cfg *config.Config) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
			cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName, cfg.DatabaseUser, cfg.DatabasePassword)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		if dir := filepath.Dir(cfg.DatabasePath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		// WAL + busy timeout keep the scheduler and API from tripping over each other
		dialector = sqlite.Open(cfg.DatabasePath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DatabaseDriver != "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Database{db: db}, nil
}

// OpenSQLite is a shortcut for tests and tools that only need a local file.
func OpenSQLite(path string) (*Database, error) {
	return Connect(&config.Config{DatabaseDriver: "sqlite", DatabasePath: path})
}

// InitSchema creates or migrates every table the hub owns
func (d *Database) InitSchema() error {
	err := d.db.AutoMigrate(
		&ActionRecord{},
		&Pattern{},
		&Suggestion{},
		&Automation{},
		&AutomationExecution{},
		&Scene{},
		&Webhook{},
		&WebhookDelivery{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Core data models - type aliases for callers that import database directly
type ActionRecord = models.ActionRecord
type Pattern = models.Pattern
type Suggestion = models.Suggestion
type Automation = models.Automation
type AutomationExecution = models.AutomationExecution
type Scene = models.Scene
type Webhook = models.Webhook
type WebhookDelivery = models.WebhookDelivery
