package db

import (
	"context"
	"errors"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rumen-monitor/internal/model"
)

// openORM opens a GORM SQLite connection with sane defaults.
func openORM(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}

// migrateORM ensures the schema for all models exists.
func migrateORM(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Reading{},
		&model.Alert{},
		&model.CaptureSession{},
		&model.AlertSettings{},
	)
}

// closeORM closes the underlying SQL DB associated with the GORM connection.
func closeORM(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation reports whether err is the msg_id uniqueness constraint
// firing. GORM translates this to ErrDuplicatedKey; the string check covers
// driver versions that predate the translator.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func insertReading(ctx context.Context, db *gorm.DB, r *model.Reading) error {
	return db.WithContext(ctx).Create(r).Error
}

func insertAlert(ctx context.Context, db *gorm.DB, a *model.Alert) error {
	return db.WithContext(ctx).Create(a).Error
}
