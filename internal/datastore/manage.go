package datastore

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oceansense/edna-go/internal/logging"
)

// DefaultSlowQueryThreshold is the duration above which GORM logs a
// query as slow.
const DefaultSlowQueryThreshold = 1 * time.Second

// getLogger returns the package logger, created lazily so logging.Init
// has run by the time the first store opens.
var getLogger = sync.OnceValue(func() *slog.Logger {
	return logging.ForService("datastore")
})

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.Default.LogMode(level)
}

// performAutoMigration migrates all pipeline tables and logs the outcome.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	migrationStart := time.Now()
	migrationLogger := getLogger().With("db_type", dbType)

	migrationLogger.Debug("starting database migration")

	if err := db.AutoMigrate(
		&Sample{},
		&Species{},
		&Detection{},
		&Alert{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		migrationLogger.Debug("database migration completed",
			"connection", connectionInfo,
			"duration", time.Since(migrationStart))
	}

	return nil
}
