// Package db implements the hotel profile store on SQLite.
//
// Every write path recomputes the profile's completeness inside the same
// transaction as the write itself, so readers never observe a profile
// without its matching derived state.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/evdwaal/staylink/internal/profile"
	"github.com/google/uuid"
)

// NowFunc is a function that returns the current time.
type NowFunc func() time.Time

// Store persists hotel profiles.
type Store struct {
	db      *sql.DB
	nowFunc NowFunc
}

// New creates a new Store.
func New(db *sql.DB, nowFunc NowFunc) *Store {
	return &Store{
		db:      db,
		nowFunc: nowFunc,
	}
}

// CreateProfile inserts a new profile. It recomputes the completeness of
// the provided profile and sets its derived and timestamp fields.
func (s *Store) CreateProfile(ctx context.Context, p *profile.HotelProfile) error {
	if p.ID == uuid.Nil || p.UserID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	now := s.nowFunc()

	// A new profile cannot have been complete before.
	p.CompletedAt = nil
	profile.Recompute(p, now)

	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hotel_profiles (id, user_id, name, location, category, about, website, complete, completed_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.Name, p.Location, p.Category, p.About, p.Website,
		p.Complete, utcPtr(p.CompletedAt), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

// UpdateProfile writes the profile fields and recomputes completeness
// against the full row. The first-completion timestamp already stored in
// the database always wins over whatever the caller carries, it cannot
// be moved or cleared through this method.
func (s *Store) UpdateProfile(ctx context.Context, p *profile.HotelProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	err = s.updateProfile(tx, p)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = errors.Join(err, rErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

func (s *Store) updateProfile(tx *sql.Tx, p *profile.HotelProfile) error {
	var storedCompletedAt *time.Time
	err := tx.QueryRow(`SELECT completed_at FROM hotel_profiles WHERE id = ?`, p.ID).Scan(&storedCompletedAt)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if storedCompletedAt != nil {
		p.CompletedAt = storedCompletedAt
	}

	now := s.nowFunc()
	profile.Recompute(p, now)
	p.UpdatedAt = now

	result, err := tx.Exec(
		`UPDATE hotel_profiles
		 SET name = ?, location = ?, category = ?, about = ?, website = ?,
		     complete = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Location, p.Category, p.About, p.Website,
		p.Complete, utcPtr(p.CompletedAt), p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("profile not found: %w", errorz.ErrNotFound)
	}

	return nil
}

// FindProfileByUserID returns the profile owned by the given user.
func (s *Store) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (profile.HotelProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, location, category, about, website, complete, completed_at, created_at, updated_at
		 FROM hotel_profiles WHERE user_id = ?`,
		userID,
	)

	var p profile.HotelProfile
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Location, &p.Category, &p.About, &p.Website,
		&p.Complete, &p.CompletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return profile.HotelProfile{}, errorz.MapDBErr(err)
	}

	return p, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
