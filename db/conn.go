// Package db opens the gorm connection and keeps the schema up to date
package db

import (
	"bitwise74/cardio-api/config"
	"bitwise74/cardio-api/internal/model"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSQLitePath = "database.db"

// Models lists every table managed by AutoMigrate
var Models = []any{
	&model.User{},
	&model.Session{},
	&model.PasswordResetToken{},
	&model.VerificationCode{},
	&model.Prediction{},
	&model.SystemSetting{},
	&model.Migration{},
}

func New(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = defaultSQLitePath
		}

		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if runningInDocker() {
			if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/%s", path)
			}
		}

		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := Open(dialector)
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB, %w", err)
		}

		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	return db, nil
}

// Open connects with the given dialector and migrates every model. Tests use
// it directly with an in-memory SQLite dialector.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate runs AutoMigrate and every data migration that hasn't run yet
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("failed to automigrate tables, %w", err)
	}

	for _, m := range dataMigrations {
		if err := runOnce(db, m.name, m.fn); err != nil {
			return fmt.Errorf("data migration %s failed, %w", m.name, err)
		}
	}

	return nil
}

type dataMigration struct {
	name string
	fn   func(tx *gorm.DB) error
}

var dataMigrations = []dataMigration{
	{name: "0001_default_settings", fn: seedDefaultSettings},
}

func runOnce(db *gorm.DB, name string, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Migration{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}

		if count > 0 {
			return nil
		}

		if err := fn(tx); err != nil {
			return err
		}

		zap.L().Info("Applied data migration", zap.String("name", name))
		return tx.Create(&model.Migration{Name: name}).Error
	})
}

func seedDefaultSettings(tx *gorm.DB) error {
	defaults := []model.SystemSetting{
		{Key: model.SettingRegistrationEnabled, Value: "true"},
		{Key: model.SettingMaintenanceMode, Value: "false"},
		{Key: model.SettingSupportEmail, Value: ""},
	}

	for _, s := range defaults {
		if err := tx.Where(model.SystemSetting{Key: s.Key}).FirstOrCreate(&s).Error; err != nil {
			return err
		}
	}

	return nil
}

// PromoteBootstrapAdmin grants admin rights to the configured email if that
// account exists. Safe to call on every start.
func PromoteBootstrapAdmin(db *gorm.DB, email string) error {
	if email == "" {
		return nil
	}

	r := db.Model(&model.User{}).
		Where("email = ? AND is_admin = ?", email, false).
		Update("is_admin", true)
	if r.Error != nil {
		return fmt.Errorf("failed to promote bootstrap admin, %w", r.Error)
	}

	if r.RowsAffected > 0 {
		zap.L().Info("Promoted bootstrap admin", zap.String("email", email))
	}

	return nil
}

func runningInDocker() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
}
