package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"explorer/internal/auth"
	"explorer/internal/models"
	"explorer/internal/observability"
	"explorer/internal/repository"
	"explorer/internal/validation"
)

// TokenIssuer signs session tokens for a user id.
type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// AuthService registers accounts, checks credentials and manages profiles.
type AuthService struct {
	users  repository.UserRepository
	hasher *auth.PasswordHasher
	tokens TokenIssuer
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

type RegisterInput struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateProfileInput struct {
	Name            string `json:"name"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func NewAuthService(users repository.UserRepository, hasher *auth.PasswordHasher, tokens TokenIssuer, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	username := strings.ToLower(strings.TrimSpace(in.Username))

	if name == "" || username == "" || in.Password == "" || in.ConfirmPassword == "" {
		s.recordAttempt("register", "invalid")
		return nil, models.NewValidationError("All fields are required")
	}
	if in.Password != in.ConfirmPassword {
		s.recordAttempt("register", "invalid")
		return nil, models.NewValidationError("Passwords do not match")
	}
	for _, err := range []error{
		validation.ValidatePassword(in.Password, "Password"),
		validation.ValidateDisplayName(name),
		validation.ValidateUsername(username),
	} {
		if err != nil {
			s.recordAttempt("register", "invalid")
			return nil, models.NewValidationError(err.Error())
		}
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing != nil {
		s.recordAttempt("register", "conflict")
		return nil, models.NewConflictError("Username already exists")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Name:         name,
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			s.recordAttempt("register", "conflict")
			return nil, err
		}
		return nil, models.NewInternalError(err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	s.recordAttempt("register", "success")
	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Login never reveals whether the username or the password was wrong.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	username := strings.ToLower(strings.TrimSpace(in.Username))
	if username == "" || in.Password == "" {
		s.recordAttempt("login", "invalid")
		return nil, models.NewValidationError("Username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	hash := s.fallbackHash()
	if user != nil {
		hash = user.PasswordHash
	}
	ok, err := s.hasher.Compare(hash, in.Password)
	if err != nil && user != nil {
		s.logger.ErrorContext(ctx, "stored password hash is unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	if user == nil || !ok {
		s.recordAttempt("login", "failure")
		return nil, models.NewUnauthenticatedError("Invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	s.recordAttempt("login", "success")
	return &AuthResult{User: user, Token: token}, nil
}

// UpdateProfile changes the display name and, when the current password checks out, the password.
func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, in UpdateProfileInput) (*models.User, error) {
	updated := *user

	if in.Name != "" {
		name := strings.TrimSpace(in.Name)
		if err := validation.ValidateDisplayName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updated.Name = name
	}

	if in.NewPassword != "" {
		if in.CurrentPassword == "" {
			return nil, models.NewValidationError("Current password is required to change password")
		}
		ok, err := s.hasher.Compare(user.PasswordHash, in.CurrentPassword)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		if !ok {
			return nil, models.NewValidationError("Current password is incorrect")
		}
		if err := validation.ValidatePassword(in.NewPassword, "New password"); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		hash, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		updated.PasswordHash = hash
	}

	if err := s.users.Update(ctx, &updated); err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthenticatedError("User not found")
		}
		return nil, models.NewInternalError(err)
	}
	return &updated, nil
}

// fallbackHash keeps login timing uniform for unknown usernames.
func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("explorer-timing-equalizer")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

func (s *AuthService) recordAttempt(action, result string) {
	observability.AuthAttempts.WithLabelValues(action, result).Inc()
}
