package database

import (
	"fmt"

	"github.com/go-logr/logr"
	"github.com/leonovk/wg-rest-api/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the relational store and migrates the schema. driver is
// "postgres" or "sqlite".
func Connect(driver, dsn string, log logr.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// sqlite allows a single writer; one connection also keeps
		// ":memory:" databases alive and shared.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("database connection opened", "driver", driver)

	err = db.AutoMigrate(
		&models.Server{},
		&models.Peer{},
		&sequence{},
		&clientStat{},
		&clientEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	log.Info("database migrated")

	return db, nil
}
