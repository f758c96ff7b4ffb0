// Package db implements the user store on SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/evdwaal/staylink/internal/auth"
	"github.com/evdwaal/staylink/internal/db"
	"github.com/evdwaal/staylink/internal/email"
	"github.com/evdwaal/staylink/internal/errorz"
	"github.com/google/uuid"
)

// Store persists user accounts in SQLite.
type Store struct {
	db *sql.DB
}

// New creates a new Store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if u.ID == uuid.Nil {
		return fmt.Errorf("zero uuid provided: %w", errorz.ErrConstraintViolated)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, name, type, status, email_verified, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, string(u.Email), u.PasswordHash.String(), u.Name, string(u.Type), string(u.Status),
		u.EmailVerified, u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	return nil
}

// FindUserByEmail returns the user with the given email address.
func (s *Store) FindUserByEmail(ctx context.Context, addr email.Address) (auth.User, error) {
	return s.findUser(ctx, "email", string(addr))
}

// FindUserByID returns the user with the given id.
func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	return s.findUser(ctx, "id", id)
}

func (s *Store) findUser(ctx context.Context, column string, value any) (auth.User, error) {
	var q db.Query
	q.Unsafe(`SELECT id, email, password_hash, name, type, status, email_verified, created_at, updated_at FROM users WHERE `)
	q.Unsafe(column)
	q.Unsafe(` = `)
	q.Param(value)

	query, params := q.Get()
	row := s.db.QueryRowContext(ctx, query, params...)

	var u auth.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Type, &u.Status,
		&u.EmailVerified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return auth.User{}, errorz.MapDBErr(err)
	}

	return u, nil
}

// UpdateUser writes the mutable fields of the user.
func (s *Store) UpdateUser(ctx context.Context, u *auth.User) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, password_hash = ?, name = ?, type = ?, status = ?, email_verified = ?, updated_at = ?
		 WHERE id = ?`,
		string(u.Email), u.PasswordHash.String(), u.Name, string(u.Type), string(u.Status),
		u.EmailVerified, u.UpdatedAt.UTC(), u.ID,
	)
	if err != nil {
		return errorz.MapDBErr(err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errorz.MapDBErr(err)
	}

	if rows == 0 {
		return fmt.Errorf("user not found: %w", errorz.ErrNotFound)
	}

	return nil
}
