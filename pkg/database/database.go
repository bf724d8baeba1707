package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tasksync-backend/pkg/config"
)

// NewConnection opens the SQL database selected by cfg.DatabaseDriver.
func NewConnection(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		return NewPostgresConnection(cfg.DatabaseURL)
	case config.DriverSQLite, "":
		return NewSQLiteConnection(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
}

// NewPostgresConnection opens a Postgres database.
func NewPostgresConnection(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return db, nil
}

// NewSQLiteConnection opens (and creates) a SQLite database file.
func NewSQLiteConnection(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "tasksync.db"
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	return db, nil
}

// AutoMigrate creates or updates the tables for the given models.
func AutoMigrate(db *gorm.DB, models ...interface{}) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate db: %w", err)
	}
	log.Printf("[Database] migrated %d models", len(models))
	return nil
}

func gormConfig() *gorm.Config {
	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	return &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
	}
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
