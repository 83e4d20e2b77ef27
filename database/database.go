package database

import (
	"fmt"
	"time"

	"imagecraft-app/internal/domain/subscriptions"
	"imagecraft-app/internal/domain/users"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the Postgres pool and migrates the schema.
func Connect(dsn string, log zerolog.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info().Msg("connected and migrated")
	return db, nil
}

// Migrate creates or updates the tables. The unique index on
// subscriptions.stripe_subscription_id is what makes reconciliation safe
// under concurrent delivery.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&users.User{},
		&subscriptions.Subscription{},
	); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}
