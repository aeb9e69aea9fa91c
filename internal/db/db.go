package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rakib-codee/harmonycare-backend/config"
	"github.com/Rakib-codee/harmonycare-backend/internal/model"
)

// Init opens the configured database and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(LogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetimeMinutes > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnablePartialIndexes && db.Dialector.Name() == "postgres" {
		log.Println("Applying PostgreSQL partial indexes...")
		if err := applyPostgresIndexes(db); err != nil {
			log.Printf("Warning: failed to apply some PostgreSQL indexes: %v. Continuing without them.", err)
		}
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Dialector maps a driver name to its GORM dialector.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(dsn), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// LogLevel parses a GORM log level name, defaulting to warn.
func LogLevel(name string) logger.LogLevel {
	switch strings.ToLower(name) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Device{},
		&model.Emergency{},
		&model.AuditEntry{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func applyPostgresIndexes(db *gorm.DB) error {
	ddls := []string{
		// Open emergencies are the hot path of every listing.
		"CREATE INDEX IF NOT EXISTS idx_emergencies_active_created ON emergencies (created_at DESC) WHERE status = 'active';",
		"CREATE INDEX IF NOT EXISTS idx_emergencies_accepted_volunteer ON emergencies (volunteer_id) WHERE status = 'accepted';",
		// Volunteer snapshot: available volunteers, freshest first.
		"CREATE INDEX IF NOT EXISTS idx_devices_available_volunteers ON devices (last_seen_at DESC) WHERE role = 'volunteer' AND is_available;",
		"ALTER TABLE emergencies DROP CONSTRAINT IF EXISTS emergencies_accepted_has_volunteer;",
		"ALTER TABLE emergencies ADD CONSTRAINT emergencies_accepted_has_volunteer CHECK (status <> 'accepted' OR volunteer_id IS NOT NULL);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
