package config

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"alfredoptarigan/job-autopilot/internal/models"
)

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	dsn := cfg.GetDatabaseDSN()

	logLevel := logger.Silent
	if cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("✅ Database connected successfully")

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("✅ Database migration completed")

	return db, nil
}

// Migrate runs the schema migration for every pipeline entity. Shared with
// the sqlite-backed test setup.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.KnowledgeBase{},
		&models.Application{},
		&models.TokenUsage{},
		&models.ResponseEvaluation{},
		&models.BudgetLedger{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
