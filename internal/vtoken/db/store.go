// Package db implements the vtoken store on SQLite.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/vtoken"
	"github.com/google/uuid"
)

// Store persists token records in SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store. The provided database must be opened for
// writing, consumption depends on its immediate transactions.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateToken inserts a new token record.
func (s *Store) CreateToken(ctx context.Context, rec *vtoken.Record) error {
	if rec.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	// user_id carries the FK to users for user-bound kinds, so tokens
	// disappear with their user. Email-scoped codes have no user yet.
	var userID *string
	if rec.Kind.UserBound() {
		userID = &rec.Subject
	}

	// Times are stored in UTC so the driver's string encoding compares
	// consistently in the WHERE clauses below.
	var consumedAt *time.Time
	if rec.ConsumedAt != nil {
		utc := rec.ConsumedAt.UTC()
		consumedAt = &utc
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_tokens (id, kind, subject, user_id, value_hash, expires_at, consumed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Subject, userID, rec.ValueHash, rec.ExpiresAt.UTC(), consumedAt, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

// ConsumeToken atomically consumes the unconsumed, unexpired record
// matching (kind, subject, valueHash). The conditional UPDATE is the
// linearization point: two concurrent calls for the same record can
// never both see consumed_at IS NULL.
func (s *Store) ConsumeToken(ctx context.Context, kind vtoken.Kind, subject, valueHash string, now time.Time) (vtoken.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return vtoken.Record{}, errorz.MapDBErr(err)
	}

	rec, err := consumeToken(tx, kind, subject, valueHash, now)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = errors.Join(err, rErr)
		}
		return vtoken.Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return vtoken.Record{}, errorz.MapDBErr(err)
	}

	return rec, nil
}

func consumeToken(tx *sql.Tx, kind vtoken.Kind, subject, valueHash string, now time.Time) (vtoken.Record, error) {
	result, err := tx.Exec(
		`UPDATE verification_tokens
		 SET consumed_at = ?
		 WHERE kind = ? AND subject = ? AND value_hash = ?
		   AND consumed_at IS NULL AND expires_at > ?`,
		now.UTC(), string(kind), subject, valueHash, now.UTC(),
	)
	if err != nil {
		return vtoken.Record{}, errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return vtoken.Record{}, errorz.MapDBErr(err)
	}

	if rows == 1 {
		return selectToken(tx, kind, subject, valueHash)
	}

	// Nothing was consumed. Look the record up to classify the failure,
	// the caller-visible contract folds most of these together.
	rec, err := selectToken(tx, kind, subject, valueHash)
	if err != nil {
		return vtoken.Record{}, err
	}

	if rec.ConsumedAt != nil {
		return vtoken.Record{}, errorz.ErrAlreadyUsed
	}

	// Present and unconsumed, so the expiry condition rejected it.
	// The record stays unconsumed, expired secrets are inert.
	return vtoken.Record{}, errorz.ErrExpired
}

func selectToken(tx *sql.Tx, kind vtoken.Kind, subject, valueHash string) (vtoken.Record, error) {
	row := tx.QueryRow(
		`SELECT id, kind, subject, value_hash, expires_at, consumed_at, created_at
		 FROM verification_tokens
		 WHERE kind = ? AND subject = ? AND value_hash = ?`,
		string(kind), subject, valueHash,
	)

	var rec vtoken.Record
	err := row.Scan(&rec.ID, &rec.Kind, &rec.Subject, &rec.ValueHash, &rec.ExpiresAt, &rec.ConsumedAt, &rec.CreatedAt)
	if err != nil {
		return vtoken.Record{}, errorz.MapDBErr(err)
	}

	return rec, nil
}

// DeleteStaleTokens removes consumed records and expired records that
// were created before the cutoff.
func (s *Store) DeleteStaleTokens(ctx context.Context, now, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM verification_tokens
		 WHERE created_at < ? AND (consumed_at IS NOT NULL OR expires_at <= ?)`,
		cutoff.UTC(), now.UTC(),
	)
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errorz.MapDBErr(err)
	}

	return count, nil
}
