package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/evdwaal/staylink/internal/auth"
	"github.com/evdwaal/staylink/internal/auth/db"
	"github.com/evdwaal/staylink/internal/db/testdb"
	"github.com/evdwaal/staylink/internal/email"
	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/krypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T) auth.User {
	t.Helper()

	hash, err := krypto.HashArgon2([]byte("reallysecret"))
	require.NoError(t, err)

	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	return auth.User{
		ID:           uuid.New(),
		Email:        email.Address(uuid.NewString() + "@example.com"),
		PasswordHash: hash,
		Name:         "Test Hotel",
		Type:         auth.TypeHotel,
		Status:       auth.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func Test_Store_CreateUser(t *testing.T) {
	t.Run("ok, create and read back", func(t *testing.T) {
		store := db.New(testdb.RunWhile(t, true))

		u := newUser(t)
		err := store.CreateUser(context.Background(), &u)
		require.NoError(t, err)

		got, err := store.FindUserByEmail(context.Background(), u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
		require.Equal(t, u.Email, got.Email)
		require.Equal(t, auth.StatusPending, got.Status)
		require.False(t, got.EmailVerified)
		require.True(t, got.PasswordHash.MatchBytes([]byte("reallysecret")))

		byID, err := store.FindUserByID(context.Background(), u.ID)
		require.NoError(t, err)
		require.Equal(t, got, byID)
	})

	t.Run("fail, zero uuid", func(t *testing.T) {
		store := db.New(testdb.RunWhile(t, true))

		u := newUser(t)
		u.ID = uuid.Nil

		err := store.CreateUser(context.Background(), &u)
		require.ErrorIs(t, err, errorz.ErrConstraintViolated)
	})

	t.Run("fail, duplicate email", func(t *testing.T) {
		store := db.New(testdb.RunWhile(t, true))

		u := newUser(t)
		err := store.CreateUser(context.Background(), &u)
		require.NoError(t, err)

		dup := u
		dup.ID = uuid.New()

		err = store.CreateUser(context.Background(), &dup)
		require.ErrorIs(t, err, errorz.ErrConstraintViolated)
	})
}

func Test_Store_UpdateUser(t *testing.T) {
	t.Run("ok, update mutable fields", func(t *testing.T) {
		store := db.New(testdb.RunWhile(t, true))

		u := newUser(t)
		err := store.CreateUser(context.Background(), &u)
		require.NoError(t, err)

		u.Status = auth.StatusVerified
		u.EmailVerified = true
		u.UpdatedAt = u.UpdatedAt.Add(time.Hour)

		err = store.UpdateUser(context.Background(), &u)
		require.NoError(t, err)

		got, err := store.FindUserByID(context.Background(), u.ID)
		require.NoError(t, err)
		require.Equal(t, auth.StatusVerified, got.Status)
		require.True(t, got.EmailVerified)
	})

	t.Run("fail, unknown user", func(t *testing.T) {
		store := db.New(testdb.RunWhile(t, true))

		u := newUser(t)
		err := store.UpdateUser(context.Background(), &u)
		require.ErrorIs(t, err, errorz.ErrNotFound)
	})
}

func Test_Store_FindUser(t *testing.T) {
	t.Run("fail, unknown email", func(t *testing.T) {
		store := db.New(testdb.RunWhile(t, true))

		_, err := store.FindUserByEmail(context.Background(), "nobody@example.com")
		require.ErrorIs(t, err, errorz.ErrNotFound)
	})
}
