package database

import (
	"context"
	"fmt"
	"log/slog"

	"explorer/internal/config"

	"gorm.io/gorm"
)

// SchemaStatus describes how the schema is managed for a configuration.
type SchemaStatus struct {
	Driver            string
	Environment       string
	UsesSQLMigrations bool
	AppliedVersions   []int
	PendingMigrations []Migration
}

// usesSQLMigrations reports whether the versioned SQL files own the schema. They are
// written for PostgreSQL; sqlite databases are always managed by AutoMigrate.
func usesSQLMigrations(cfg *config.Config) bool {
	return cfg.DBDriver == "postgres" && cfg.IsProduction()
}

// EnsureSchema applies pending SQL migrations in production and AutoMigrate elsewhere.
func EnsureSchema(ctx context.Context, db *gorm.DB, cfg *config.Config, log *slog.Logger) error {
	if usesSQLMigrations(cfg) {
		log.Info("Applying SQL migrations", slog.String("env", cfg.Env))
		applied, err := NewMigrator(db, log).Up(ctx)
		if err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		log.Info("SQL migrations complete", slog.Int("applied", applied))
		return nil
	}

	log.Info("Running GORM AutoMigrate", slog.String("driver", cfg.DBDriver), slog.String("env", cfg.Env))
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the applied and pending SQL migrations.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	status := &SchemaStatus{
		Driver:            cfg.DBDriver,
		Environment:       cfg.Env,
		UsesSQLMigrations: usesSQLMigrations(cfg),
	}

	migrator := NewMigrator(db, nil)
	applied, err := migrator.Applied(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	pending, err := migrator.Pending(ctx)
	if err != nil {
		return nil, err
	}
	status.PendingMigrations = pending

	return status, nil
}
