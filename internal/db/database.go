package db

import (
	"fmt"
	stlog "log"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the global database connection instance.
var DB *gorm.DB

// InitDB initializes the database connection using the provided DSN.
// Postgres is selected for postgres:// DSNs, sqlite otherwise.
func InitDB(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}

	newLogger := gormlogger.New(
		stlog.New(log.Logger, "", stlog.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{Logger: newLogger})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("Database connection established")
	return nil
}

// MigrateDB runs GORM's AutoMigrate for the provided models.
// It must be called after InitDB.
func MigrateDB(modelsToMigrate ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized, call InitDB first")
	}
	if len(modelsToMigrate) == 0 {
		return fmt.Errorf("no models provided for migration")
	}

	if err := DB.AutoMigrate(modelsToMigrate...); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	log.Info().Int("models_migrated", len(modelsToMigrate)).Msg("Database migration completed")
	return nil
}
