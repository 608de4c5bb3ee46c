// Package middleware provides authentication, logging, tracing and rate limiting middleware.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"explorer/internal/auth"
	"explorer/internal/models"
	"explorer/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by RequireIdentity.
const (
	LocalsUser   = "user"
	LocalsUserID = "userID"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// UserFinder loads the account behind a verified token.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// RequireIdentity returns a middleware that resolves the bearer token to a stored user.
// Missing or malformed credentials, failed verification and unknown users are rejected
// with 401. A store failure is reported as 500.
func RequireIdentity(tokens TokenVerifier, users UserFinder, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Access token required"))
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				logger.DebugContext(c.UserContext(), "expired token presented")
			}
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthenticatedError("Invalid or expired token"))
		}

		user, err := users.GetByID(c.UserContext(), userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthenticatedError("User not found"))
			}
			logger.ErrorContext(c.UserContext(), "identity lookup failed",
				slog.String("user_id", userID), slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}

		c.Locals(LocalsUser, user)
		c.Locals(LocalsUserID, user.ID)
		c.SetUserContext(observability.WithUserID(c.UserContext(), user.ID))

		return c.Next()
	}
}

// CurrentUser returns the identity stored by RequireIdentity.
func CurrentUser(c *fiber.Ctx) (*models.User, bool) {
	user, ok := c.Locals(LocalsUser).(*models.User)
	return user, ok && user != nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
