package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"explorer/internal/cache"
	"explorer/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	repo := NewUserRepository(newTestDB(t), nil)
	ctx := context.Background()

	user := &models.User{Name: "Alice", Username: "  Alice ", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)

	found, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)

	missing, err := repo.GetByUsername(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, missing)

	_, err = repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_UsernameIsCaseInsensitiveUnique(t *testing.T) {
	repo := NewUserRepository(newTestDB(t), nil)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Name: "A", Username: "traveller", PasswordHash: "h"}))

	err := repo.Create(ctx, &models.User{Name: "B", Username: "Traveller", PasswordHash: "h"})
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeConflict))
	assert.Equal(t, "Username already exists", err.Error())
}

func TestUserRepository_CachedLookupInvalidatedOnUpdate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repo := NewUserRepository(newTestDB(t), cache.New(rdb))
	ctx := context.Background()

	user := &models.User{Name: "Alice", Username: "alice", PasswordHash: "old-hash"}
	require.NoError(t, repo.Create(ctx, user))

	first, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "old-hash", first.PasswordHash, "cache entries keep the credential hash")
	assert.True(t, mr.Exists(cache.UserKey(user.ID)))

	user.Name = "Alice P."
	user.PasswordHash = "new-hash"
	require.NoError(t, repo.Update(ctx, user))
	assert.False(t, mr.Exists(cache.UserKey(user.ID)))

	second, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice P.", second.Name)
	assert.Equal(t, "new-hash", second.PasswordHash)
}

func TestUserRepository_UpdateMissing(t *testing.T) {
	repo := NewUserRepository(newTestDB(t), nil)

	err := repo.Update(context.Background(), &models.User{ID: "missing", Name: "x", Username: "x", PasswordHash: "h"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_PostgresErrors(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
		mock.ExpectRollback()

		err := repo.Create(ctx, &models.User{Name: "A", Username: "a", PasswordHash: "h"})
		assert.True(t, models.IsCode(err, models.CodeConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lookup failure maps to internal", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE username = $1`)).
			WithArgs("alice", 1).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetByUsername(ctx, "Alice")
		assert.True(t, models.IsCode(err, models.CodeInternal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get by id row", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "name", "username", "password_hash"}).
			AddRow("u-1", "Alice", "alice", "hash")
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE id = $1`)).
			WithArgs("u-1", 1).
			WillReturnRows(rows)

		user, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.False(t, isUniqueConstraintError(nil))
	assert.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: users.username")))
	assert.False(t, isUniqueConstraintError(errors.New("connection refused")))
}
