package repository

import (
	"context"
	"errors"
	"time"

	"explorer/internal/cache"
	"explorer/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByUsername returns (nil, nil) when no account matches.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

// NewUserRepository returns a new UserRepository implementation. c may be nil.
func NewUserRepository(db *gorm.DB, c *cache.Cache) UserRepository {
	return &userRepository{db: db, cache: c}
}

// cachedUser keeps the credential hash that models.User never serializes.
type cachedUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var entry cachedUser

	err := r.cache.Aside(ctx, cache.UserKey(id), &entry, cache.UserTTL, func() error {
		var user models.User
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User")
			}
			return models.NewInternalError(err)
		}
		entry = cachedUser(user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	user := models.User(entry)
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", normalizeUsername(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Username = normalizeUsername(user.Username)
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	user.Username = normalizeUsername(user.Username)
	result := r.db.WithContext(ctx).Model(user).
		Select("name", "username", "password_hash", "updated_at").
		Updates(user)
	if result.Error != nil {
		if isUniqueConstraintError(result.Error) {
			return models.NewConflictError("Username already exists")
		}
		return models.NewInternalError(result.Error)
	}
	r.cache.InvalidateUser(ctx, user.ID)
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("User")
	}
	return nil
}
