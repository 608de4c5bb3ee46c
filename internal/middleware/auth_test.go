package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"explorer/internal/auth"
	"explorer/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userFinderStub struct {
	users map[string]*models.User
	err   error
}

func (s userFinderStub) GetByID(_ context.Context, id string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, models.NewNotFoundError("User")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireIdentity(t *testing.T) {
	tokens, err := auth.NewTokenService("test-secret-key-12345678901234567890123456789012", time.Hour)
	require.NoError(t, err)

	alice := &models.User{ID: "6f1c2d9e-0f7a-4c55-9d0b-6e7a1b2c3d4e", Name: "Alice", Username: "alice"}
	finder := userFinderStub{users: map[string]*models.User{alice.ID: alice}}

	valid, err := tokens.Issue(alice.ID)
	require.NoError(t, err)
	ghost, err := tokens.Issue("00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)

	tests := []struct {
		name            string
		finder          UserFinder
		authHeader      string
		expectedStatus  int
		expectedMessage string
	}{
		{"valid token", finder, "Bearer " + valid, http.StatusOK, ""},
		{"scheme is case-insensitive", finder, "bearer " + valid, http.StatusOK, ""},
		{"missing header", finder, "", http.StatusUnauthorized, "Access token required"},
		{"wrong scheme", finder, "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "Access token required"},
		{"bearer without token", finder, "Bearer ", http.StatusUnauthorized, "Access token required"},
		{"malformed token", finder, "Bearer malformed.token.here", http.StatusUnauthorized, "Invalid or expired token"},
		{"deleted user", finder, "Bearer " + ghost, http.StatusUnauthorized, "User not found"},
		{"store failure", userFinderStub{err: errors.New("db down")}, "Bearer " + valid, http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/test", RequireIdentity(tokens, tt.finder, discardLogger()), func(c *fiber.Ctx) error {
				user, ok := CurrentUser(c)
				require.True(t, ok)
				return c.JSON(fiber.Map{"userID": c.Locals(LocalsUserID), "name": user.Name})
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, alice.ID, body["userID"])
				assert.Equal(t, "Alice", body["name"])
				return
			}
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.expectedMessage, body["message"])
		})
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := bearerToken("  BEARER   abc.def.ghi ")
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", token)

	_, ok = bearerToken("abc.def.ghi")
	assert.False(t, ok)
}
