package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/gorm"
)

type MigrationConfig struct {
	MigrationsPath string
	DBName         string
	MaxRetries     int
	RetryDelay     time.Duration
}

func DefaultMigrationConfig() *MigrationConfig {
	return &MigrationConfig{
		MigrationsPath: "file://migrations",
		DBName:         "crewboard",
		MaxRetries:     3,
		RetryDelay:     2 * time.Second,
	}
}

func RunMigrations(db *gorm.DB, config *MigrationConfig) error {
	if config == nil {
		config = DefaultMigrationConfig()
	}

	log.Printf("🔄 Starting database migrations from: %s", config.MigrationsPath)

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := waitForDatabase(sqlDB, config.MaxRetries, config.RetryDelay); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{
		DatabaseName:          config.DBName,
		MigrationsTable:       "schema_migrations",
		MultiStatementEnabled: true,
		MultiStatementMaxSize: 10 * 1 << 20,
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(config.MigrationsPath, config.DBName, driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	currentVersion, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Println("📋 No migrations applied yet")
	} else if err != nil {
		log.Printf("⚠️  Could not get current migration version: %v", err)
	} else {
		log.Printf("📋 Current migration version: %d (dirty: %v)", currentVersion, dirty)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("✅ Database schema is up to date - no migrations needed")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	finalVersion, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to get final migration version: %w", err)
	}

	log.Printf("✅ Database migrations completed (version %d)", finalVersion)
	return nil
}

func waitForDatabase(db *sql.DB, maxRetries int, delay time.Duration) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = db.Ping(); err == nil {
			return nil
		}
		log.Printf("⏳ Database not ready (attempt %d/%d): %v", attempt, maxRetries, err)
		time.Sleep(delay)
	}
	return err
}
