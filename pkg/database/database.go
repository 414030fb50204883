package database

import (
	"fmt"
	"log"

	"linktex-backend/internal/model"
	"linktex-backend/pkg/config"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Initialize opens the database connection and migrates the schema
func Initialize(cfg *config.Config) error {
	var err error

	// Connect with DisableAutoPrepare option to prevent "prepared statement already exists" errors
	pgConfig := postgres.Config{
		DSN:                  cfg.DB.GetDSN(),
		PreferSimpleProtocol: true, // Disables implicit prepared statement usage
	}

	DB, err = gorm.Open(postgres.New(pgConfig), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.DB.LogLevel),
	})
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		return err
	}

	// Configure connection pool
	sqlDB, err := DB.DB()
	if err != nil {
		log.Printf("Failed to get database connection: %v", err)
		return err
	}

	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}

	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}

	if cfg.DB.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)
	}

	// AutoMigrate will automatically create or update the table structure based on our models
	err = DB.AutoMigrate(
		&model.Company{},
		&model.User{},
		&model.Product{},
		&model.ProductVariant{},
		&model.WorkRecord{},
		&model.PasswordReset{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	fmt.Println("Database connected and migrated successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}
