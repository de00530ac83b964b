// Package datastore opens the hostpulse database and migrates its schema.
package datastore

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	"github.com/tphakala/hostpulse/internal/conf"
	"github.com/tphakala/hostpulse/internal/datastore/entities"
	"github.com/tphakala/hostpulse/internal/errors"
)

// Models lists every table managed by AutoMigrate.
func Models() []any {
	return []any{
		&entities.ResourceSample{},
		&entities.Alert{},
		&entities.AlertFiring{},
	}
}

// Open connects to the configured database and migrates the schema.
func Open(settings conf.DatabaseSettings) (*gorm.DB, error) {
	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gorm_logger.Default.LogMode(gorm_logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("failed to open %s database: %w", settings.Type, err),
			errors.CategoryDatabase, "datastore")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(fmt.Errorf("failed to get sql.DB: %w", err), errors.CategoryDatabase, "datastore")
	}
	if settings.Type == conf.DatabaseSQLite {
		// SQLite serializes writers; a single connection also keeps :memory:
		// databases coherent.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(fmt.Errorf("failed to migrate schema: %w", err), errors.CategoryDatabase, "datastore")
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(settings conf.DatabaseSettings) (gorm.Dialector, error) {
	switch settings.Type {
	case conf.DatabaseSQLite:
		return sqlite.Open(sqliteDSN(settings.Path)), nil
	case conf.DatabaseMySQL:
		return mysql.Open(settings.DSN), nil
	default:
		return nil, errors.Wrap(fmt.Errorf("unsupported database type %q", settings.Type),
			errors.CategoryConfiguration, "datastore")
	}
}

func sqliteDSN(path string) string {
	if path == ":memory:" || strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "_foreign_keys=on"
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", path)
}
