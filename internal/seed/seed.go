// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"explorer/internal/auth"
	"explorer/internal/geo"
	"explorer/internal/models"

	"gorm.io/gorm"
)

// DefaultPassword is shared by every seeded account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers       int
	NumExperiences int
	ShouldClean    bool
	// Seed makes the generated data reproducible. Zero picks a random seed.
	Seed       int64
	MaxDays    int
	BcryptCost int
}

// Result counts what a run created.
type Result struct {
	Users       []models.User
	Experiences int
}

// Seeder fills a database with demo users and experiences.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	opts    Options
	logger  *slog.Logger
}

// NewSeeder binds a Seeder to db.
func NewSeeder(db *gorm.DB, locations *geo.Hierarchy, opts Options, logger *slog.Logger) *Seeder {
	if locations == nil {
		locations = geo.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = 10
	}
	return &Seeder{
		db:      db,
		factory: NewFactory(locations, opts.Seed, opts.MaxDays),
		opts:    opts,
		logger:  logger,
	}
}

// ClearAll removes every experience and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Experience{}).Error; err != nil {
			return fmt.Errorf("clear experiences: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("clear users: %w", err)
		}
		return nil
	})
}

// Run seeds users and spreads experiences across them.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	if s.opts.NumUsers <= 0 {
		return nil, errors.New("at least one user is required")
	}

	if s.opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	hash, err := auth.NewPasswordHasher(s.opts.BcryptCost).Hash(DefaultPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	result := &Result{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var offset int64
		if err := tx.Model(&models.User{}).Count(&offset).Error; err != nil {
			return err
		}

		users := make([]models.User, 0, s.opts.NumUsers)
		for i := 0; i < s.opts.NumUsers; i++ {
			users = append(users, *s.factory.BuildUser(int(offset)+i+1, hash))
		}
		if err := tx.CreateInBatches(&users, 100).Error; err != nil {
			return fmt.Errorf("create users: %w", err)
		}
		result.Users = users

		if s.opts.NumExperiences <= 0 {
			return nil
		}
		experiences := make([]models.Experience, 0, s.opts.NumExperiences)
		for i := 0; i < s.opts.NumExperiences; i++ {
			experiences = append(experiences, *s.factory.BuildExperience(&users[i%len(users)]))
		}
		if err := tx.CreateInBatches(&experiences, 100).Error; err != nil {
			return fmt.Errorf("create experiences: %w", err)
		}
		result.Experiences = len(experiences)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "database seeded",
		slog.Int("users", len(result.Users)),
		slog.Int("experiences", result.Experiences),
	)
	return result, nil
}
