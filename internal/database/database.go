package database

import (
	"strings"

	"example.com/backstage/invoicing/config"
	"example.com/backstage/invoicing/internal/metrics"
	"example.com/backstage/invoicing/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite://"

// Open connects the write and read-only databases. Without a read-only DSN
// both handles point at the same pool. A DSN starting with sqlite:// opens a
// single-connection SQLite file, which is what local runs and tests use.
func Open(cfg config.DatabaseConfig, collector *metrics.Metrics) (*gorm.DB, *gorm.DB, error) {
	db, err := open(cfg.DSN, cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}
	RegisterMetricsHooks(db, collector)

	readOnlyDB := db
	if cfg.ReadOnlyDSN != "" && !isSQLite(cfg.DSN) {
		readOnlyDB, err = open(cfg.ReadOnlyDSN, cfg)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
		}
		RegisterMetricsHooks(readOnlyDB, collector)
	}

	if cfg.AutoMigrate {
		if err := models.SetupModels(db); err != nil {
			return nil, nil, errors.Wrap(err, "failed to run migrations")
		}
	}

	return db, readOnlyDB, nil
}

func open(dsn string, cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	if isSQLite(dsn) {
		db, err := gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix)), gormCfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get underlying DB connection")
		}
		// SQLite allows one writer; a single connection serializes
		// transactions instead of failing them with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		log.Debug().Str("dsn", dsn).Msg("Opened SQLite database")
		return db, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get underlying DB connection")
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

func isSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, sqlitePrefix)
}

// Close closes the underlying connection pools
func Close(dbs ...*gorm.DB) {
	seen := make(map[*gorm.DB]bool)
	for _, db := range dbs {
		if db == nil || seen[db] {
			continue
		}
		seen[db] = true
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close database connection")
			}
		}
	}
}
