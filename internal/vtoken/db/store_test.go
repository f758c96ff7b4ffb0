package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/evdwaal/staylink/internal/db/testdb"
	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/vtoken"
	"github.com/evdwaal/staylink/internal/vtoken/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func storeForTest(t *testing.T) *db.Store {
	t.Helper()
	return db.New(testdb.RunWhile(t, true))
}

func testRecord(t *testing.T, modFunc func(*vtoken.Record)) vtoken.Record {
	t.Helper()

	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := vtoken.Record{
		ID:        uuid.New(),
		Kind:      vtoken.KindVerifyCode,
		Subject:   "alice@example.com",
		ValueHash: vtoken.HashValue("123456"),
		ExpiresAt: now.Add(10 * time.Minute),
		CreatedAt: now,
	}

	if modFunc != nil {
		modFunc(&rec)
	}

	return rec
}

func Test_Store_CreateToken(t *testing.T) {
	t.Run("ok, create and read back", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, nil)

		err := store.CreateToken(context.Background(), &rec)
		require.NoError(t, err)

		got, err := store.ConsumeToken(context.Background(), rec.Kind, rec.Subject, rec.ValueHash, rec.CreatedAt.Add(time.Minute))
		require.NoError(t, err)
		require.Equal(t, rec.ID, got.ID)
		require.Equal(t, rec.Subject, got.Subject)
		require.NotNil(t, got.ConsumedAt)
	})

	t.Run("fail, zero uuid", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, func(r *vtoken.Record) {
			r.ID = uuid.Nil
		})

		err := store.CreateToken(context.Background(), &rec)
		require.ErrorIs(t, err, errorz.ErrConstraintViolated)
	})

	t.Run("fail, duplicate value for same kind", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, nil)

		require.NoError(t, store.CreateToken(context.Background(), &rec))

		dup := testRecord(t, nil)
		err := store.CreateToken(context.Background(), &dup)
		require.ErrorIs(t, err, errorz.ErrConstraintViolated)
	})

	t.Run("fail, user-bound token for unknown user", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, func(r *vtoken.Record) {
			r.Kind = vtoken.KindPasswordReset
			r.Subject = uuid.NewString()
		})

		err := store.CreateToken(context.Background(), &rec)
		require.ErrorIs(t, err, errorz.ErrConstraintViolated)
	})
}

func Test_Store_ConsumeToken(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("fail, no matching record", func(t *testing.T) {
		store := storeForTest(t)

		_, err := store.ConsumeToken(context.Background(), vtoken.KindVerifyCode, "alice@example.com", vtoken.HashValue("123456"), now)
		require.ErrorIs(t, err, errorz.ErrNotFound)
	})

	t.Run("fail, wrong subject", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, nil)
		require.NoError(t, store.CreateToken(context.Background(), &rec))

		_, err := store.ConsumeToken(context.Background(), rec.Kind, "bob@example.com", rec.ValueHash, now.Add(time.Minute))
		require.ErrorIs(t, err, errorz.ErrNotFound)
	})

	t.Run("fail, second consume reports already used", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, nil)
		require.NoError(t, store.CreateToken(context.Background(), &rec))

		_, err := store.ConsumeToken(context.Background(), rec.Kind, rec.Subject, rec.ValueHash, now.Add(time.Minute))
		require.NoError(t, err)

		_, err = store.ConsumeToken(context.Background(), rec.Kind, rec.Subject, rec.ValueHash, now.Add(2*time.Minute))
		require.ErrorIs(t, err, errorz.ErrAlreadyUsed)
		// Externally the already-used case is indistinguishable from not found.
		require.ErrorIs(t, err, errorz.ErrNotFound)
	})

	t.Run("fail, expired record stays unconsumed", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, nil)
		require.NoError(t, store.CreateToken(context.Background(), &rec))

		after := rec.ExpiresAt.Add(time.Second)

		_, err := store.ConsumeToken(context.Background(), rec.Kind, rec.Subject, rec.ValueHash, after)
		require.ErrorIs(t, err, errorz.ErrExpired)

		// A later attempt still reports expired, not already used.
		_, err = store.ConsumeToken(context.Background(), rec.Kind, rec.Subject, rec.ValueHash, after.Add(time.Second))
		require.ErrorIs(t, err, errorz.ErrExpired)
	})

	t.Run("ok, expiry boundary is exclusive", func(t *testing.T) {
		store := storeForTest(t)
		rec := testRecord(t, nil)
		require.NoError(t, store.CreateToken(context.Background(), &rec))

		// Exactly at the expiry instant the record is no longer valid.
		_, err := store.ConsumeToken(context.Background(), rec.Kind, rec.Subject, rec.ValueHash, rec.ExpiresAt)
		require.ErrorIs(t, err, errorz.ErrExpired)
	})
}

func Test_Store_DeleteStaleTokens(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("ok, removes consumed and expired, keeps live", func(t *testing.T) {
		store := storeForTest(t)

		consumed := testRecord(t, func(r *vtoken.Record) {
			r.ValueHash = vtoken.HashValue("111111")
			r.CreatedAt = now.Add(-48 * time.Hour)
			r.ExpiresAt = now.Add(time.Hour)
		})
		require.NoError(t, store.CreateToken(context.Background(), &consumed))
		_, err := store.ConsumeToken(context.Background(), consumed.Kind, consumed.Subject, consumed.ValueHash, now.Add(-47*time.Hour))
		require.NoError(t, err)

		expired := testRecord(t, func(r *vtoken.Record) {
			r.ValueHash = vtoken.HashValue("222222")
			r.CreatedAt = now.Add(-48 * time.Hour)
			r.ExpiresAt = now.Add(-47 * time.Hour)
		})
		require.NoError(t, store.CreateToken(context.Background(), &expired))

		live := testRecord(t, func(r *vtoken.Record) {
			r.ValueHash = vtoken.HashValue("333333")
			r.CreatedAt = now.Add(-time.Minute)
			r.ExpiresAt = now.Add(time.Hour)
		})
		require.NoError(t, store.CreateToken(context.Background(), &live))

		count, err := store.DeleteStaleTokens(context.Background(), now, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 2, count)

		// The live record is still consumable.
		_, err = store.ConsumeToken(context.Background(), live.Kind, live.Subject, live.ValueHash, now)
		require.NoError(t, err)
	})

	t.Run("ok, nothing to delete", func(t *testing.T) {
		store := storeForTest(t)

		count, err := store.DeleteStaleTokens(context.Background(), now, now.Add(-24*time.Hour))
		require.NoError(t, err)
		require.EqualValues(t, 0, count)
	})
}
