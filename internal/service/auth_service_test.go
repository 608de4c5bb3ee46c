package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"explorer/internal/auth"
	"explorer/internal/models"
	"explorer/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenIssuerStub struct {
	err error
}

func (s tokenIssuerStub) Issue(userID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "token-for-" + userID, nil
}

func newAuthService(t *testing.T) (*AuthService, *testutil.UserRepoStub) {
	t.Helper()
	users := testutil.NewUserRepoStub()
	return NewAuthService(users, auth.NewPasswordHasher(4), tokenIssuerStub{}, nil), users
}

func registerAlice(t *testing.T, svc *AuthService) *AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), RegisterInput{
		Name:            "Alice",
		Username:        "alice1",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	return res
}

func TestAuthService_Register(t *testing.T) {
	svc, users := newAuthService(t)

	res := registerAlice(t, svc)
	assert.Equal(t, "Alice", res.User.Name)
	assert.Equal(t, "alice1", res.User.Username)
	assert.Equal(t, "token-for-"+res.User.ID, res.Token)
	assert.NotEqual(t, "secret1", res.User.PasswordHash)

	stored, err := users.GetByID(context.Background(), res.User.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		in   RegisterInput
		msg  string
	}{
		{"missing name", RegisterInput{Username: "bob", Password: "secret1", ConfirmPassword: "secret1"}, "All fields are required"},
		{"blank name", RegisterInput{Name: "   ", Username: "bob", Password: "secret1", ConfirmPassword: "secret1"}, "All fields are required"},
		{"mismatch", RegisterInput{Name: "Bob", Username: "bob", Password: "secret1", ConfirmPassword: "secret2"}, "Passwords do not match"},
		{"short password", RegisterInput{Name: "Bob", Username: "bob", Password: "abc", ConfirmPassword: "abc"}, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newAuthService(t)
			_, err := svc.Register(context.Background(), tt.in)
			require.Error(t, err)
			assert.True(t, models.IsCode(err, models.CodeValidation))
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestAuthService_RegisterAcceptsFreeFormUsernames(t *testing.T) {
	for _, username := range []string{"jo", "admin", "alice@example.com", "Kasun Perera"} {
		t.Run(username, func(t *testing.T) {
			svc, _ := newAuthService(t)
			res, err := svc.Register(context.Background(), RegisterInput{
				Name: "Traveller", Username: username, Password: "secret1", ConfirmPassword: "secret1",
			})
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(username), res.User.Username)
		})
	}
}

func TestAuthService_RegisterDuplicateUsernameIsCaseInsensitive(t *testing.T) {
	svc, _ := newAuthService(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name: "Other", Username: "  ALICE1 ", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, 400, models.StatusOf(err))
	assert.Equal(t, "Username already exists", err.Error())
}

func TestAuthService_Login(t *testing.T) {
	svc, _ := newAuthService(t)
	registered := registerAlice(t, svc)

	res, err := svc.Login(context.Background(), LoginInput{Username: "Alice1", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)

	_, err = svc.Login(context.Background(), LoginInput{Username: "alice1", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.Equal(t, 401, models.StatusOf(err))

	_, err = svc.Login(context.Background(), LoginInput{Username: "nobody", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, err = svc.Login(context.Background(), LoginInput{Username: "alice1"})
	require.Error(t, err)
	assert.Equal(t, "Username and password are required", err.Error())
}

func TestAuthService_LoginStoreFailure(t *testing.T) {
	svc, users := newAuthService(t)
	users.Err = errors.New("db down")

	_, err := svc.Login(context.Background(), LoginInput{Username: "alice1", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, 500, models.StatusOf(err))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, users := newAuthService(t)
	registered := registerAlice(t, svc)
	current, err := users.GetByID(ctx, registered.User.ID)
	require.NoError(t, err)

	t.Run("name only", func(t *testing.T) {
		updated, err := svc.UpdateProfile(ctx, current, UpdateProfileInput{Name: "  Alice Perera "})
		require.NoError(t, err)
		assert.Equal(t, "Alice Perera", updated.Name)
		assert.Equal(t, current.PasswordHash, updated.PasswordHash)
	})

	t.Run("password requires current password", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, current, UpdateProfileInput{NewPassword: "newsecret"})
		require.Error(t, err)
		assert.Equal(t, "Current password is required to change password", err.Error())
	})

	t.Run("wrong current password", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, current, UpdateProfileInput{CurrentPassword: "nope", NewPassword: "newsecret"})
		require.Error(t, err)
		assert.Equal(t, "Current password is incorrect", err.Error())
	})

	t.Run("short new password", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, current, UpdateProfileInput{CurrentPassword: "secret1", NewPassword: "abc"})
		require.Error(t, err)
		assert.Equal(t, "New password must be at least 6 characters", err.Error())
	})

	t.Run("password change", func(t *testing.T) {
		_, err := svc.UpdateProfile(ctx, current, UpdateProfileInput{CurrentPassword: "secret1", NewPassword: "newsecret"})
		require.NoError(t, err)

		_, err = svc.Login(ctx, LoginInput{Username: "alice1", Password: "secret1"})
		require.Error(t, err)
		_, err = svc.Login(ctx, LoginInput{Username: "alice1", Password: "newsecret"})
		require.NoError(t, err)
	})
}
