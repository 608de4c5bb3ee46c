package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"
)

// schemaMigration is one row of the applied-versions ledger.
type schemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

func (schemaMigration) TableName() string { return "schema_migrations" }

// Migrator applies and reverts the embedded SQL migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
	log        *slog.Logger
	now        func() time.Time
}

func NewMigrator(db *gorm.DB, log *slog.Logger) *Migrator {
	return newMigrator(db, migrations, log)
}

func newMigrator(db *gorm.DB, set []Migration, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}
	return &Migrator{db: db, migrations: set, log: log, now: time.Now}
}

// Applied lists recorded versions in ascending order. A missing ledger means nothing ran yet.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := m.db.WithContext(ctx).Model(&schemaMigration{}).Order("version ASC").Pluck("version", &versions).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the migrations that have not been applied, oldest first.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration and reports how many ran. Each script and its
// ledger row commit together.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.db.WithContext(ctx).AutoMigrate(&schemaMigration{}); err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}
	if err := checkKnownVersions(applied, m.migrations); err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if slices.Contains(applied, mig.Version) {
			continue
		}
		m.log.InfoContext(ctx, "applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&schemaMigration{Version: mig.Version, Name: mig.Name, AppliedAt: m.now()}).Error
		})
		if err != nil {
			return count, fmt.Errorf("apply %s: %w", mig.String(), err)
		}
		count++
	}
	return count, nil
}

// Down reverts one applied migration.
func (m *Migrator) Down(ctx context.Context, version int) error {
	idx := slices.IndexFunc(m.migrations, func(mig Migration) bool { return mig.Version == version })
	if idx < 0 {
		return fmt.Errorf("unknown migration version %d", version)
	}
	mig := m.migrations[idx]

	applied, err := m.Applied(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(applied, version) {
		return fmt.Errorf("%s is not applied", mig.String())
	}

	m.log.InfoContext(ctx, "reverting migration", slog.String("migration", mig.String()))
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(mig.DownScript).Error; err != nil {
			return err
		}
		return tx.Where("version = ?", version).Delete(&schemaMigration{}).Error
	})
	if err != nil {
		return fmt.Errorf("revert %s: %w", mig.String(), err)
	}
	return nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// checkKnownVersions refuses to run against a database migrated by a newer build.
func checkKnownVersions(applied []int, known []Migration) error {
	var unknown []string
	for _, version := range applied {
		if !slices.ContainsFunc(known, func(m Migration) bool { return m.Version == version }) {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("schema_migrations has versions this build does not know: %s", strings.Join(unknown, ", "))
}
