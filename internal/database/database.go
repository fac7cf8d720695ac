// Package database provides database initialization and connection management.
// It uses GORM with SQLite for embedded storage, with a driver abstraction
// for future extensibility to other relational databases.
package database

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/chebizarro/nostr-git-sub004/pkg/errors"
	"github.com/chebizarro/nostr-git-sub004/pkg/logger"
)

const (
	// DefaultDBPath is the default structured-store location for cache
	// metadata that doesn't belong in the bbolt KV store (URL preferences,
	// credential references, webhook registrations).
	DefaultDBPath = "./data/nostrgit.db"
)

var (
	db   *gorm.DB
	once sync.Once

	migrationModels []interface{}
	modelsMu        sync.Mutex
)

// RegisterModels appends GORM models to auto-migrate on Init. Packages that
// own a structured table (internal/cache's URL-preference and credential
// reference stores) call this from an init() so database.Init doesn't need
// to import them directly and risk an import cycle.
func RegisterModels(models ...interface{}) {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	migrationModels = append(migrationModels, models...)
}

// Init initializes the database connection and performs auto-migration.
// Safe to call multiple times; only the first call takes effect.
func Init() error {
	return InitWithPath(DefaultDBPath)
}

// InitWithPath initializes the database with a custom path, primarily for tests.
func InitWithPath(dbPath string) error {
	var initErr error
	once.Do(func() {
		initErr = initDB(dbPath)
	})
	return initErr
}

func initDB(dbPath string) error {
	logger.Info("Initializing database", zap.String("path", dbPath))

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("Failed to create database directory", zap.Error(err), zap.String("dir", dir))
		return errors.Wrap(errors.Network, "failed to create database directory", err)
	}

	driver := &SQLiteDriver{}
	gormLog := gormlogger.Default.LogMode(gormlogger.Silent)

	dialector, err := driver.Open(dbPath)
	if err != nil {
		logger.Error("Failed to open database", zap.Error(err))
		return errors.Wrap(errors.Network, "failed to open database", err)
	}

	db, err = gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return errors.Wrap(errors.Network, "failed to connect to database", err)
	}

	if err := driver.PreMigrationConfig(db); err != nil {
		logger.Error("Failed to apply pre-migration config", zap.Error(err))
		return errors.Wrap(errors.Network, "failed to apply pre-migration config", err)
	}

	if err := migrate(); err != nil {
		return err
	}

	if err := driver.PostMigrationConfig(db); err != nil {
		logger.Error("Failed to apply post-migration config", zap.Error(err))
		return errors.Wrap(errors.Network, "failed to apply post-migration config", err)
	}

	logger.Info("Database initialized successfully", zap.String("driver", driver.Name()))
	return nil
}

func migrate() error {
	modelsMu.Lock()
	models := make([]interface{}, len(migrationModels))
	copy(models, migrationModels)
	modelsMu.Unlock()

	logger.Info("Running database migrations", zap.Int("models", len(models)))
	if len(models) == 0 {
		return nil
	}
	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run database migrations", zap.Error(err))
		return errors.Wrap(errors.Network, "failed to run database migrations", err)
	}
	logger.Info("Database migrations completed", zap.Int("models", len(models)))
	return nil
}

// Get returns the database instance. Panics if Init hasn't run.
func Get() *gorm.DB {
	if db == nil {
		panic("database not initialized, call Init first")
	}
	return db
}

// Close closes the database connection.
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	logger.Info("Closing database connection")
	return sqlDB.Close()
}

// ResetForTesting resets database state so tests can re-initialize it.
func ResetForTesting() {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		db = nil
	}
	once = sync.Once{}
}

// Transaction executes fn within a database transaction.
func Transaction(fn func(tx *gorm.DB) error) error {
	return Get().Transaction(fn)
}

// HealthCheck performs a simple connectivity check.
func HealthCheck() error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(errors.Network, "failed to get database connection", err)
	}
	return sqlDB.Ping()
}
