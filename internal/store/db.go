// Package store persists canonical property records and connector health
// snapshots. It is the storage collaborator behind the sync job: upserts are
// keyed on (external_id, source) and health snapshots are append-only rows
// consumed by operator tooling.
package store

import (
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/hearthdata/hearth/pkg/config"
	"github.com/hearthdata/hearth/pkg/errors"
)

// Open connects to the configured database, applies pool settings, and runs
// migrations for the store's tables.
func Open(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.DSN), gormCfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to access sql.DB")
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := db.AutoMigrate(&PropertyRow{}, &HealthSnapshotRow{}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to migrate schema")
	}

	return db, nil
}
