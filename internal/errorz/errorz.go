package errorz

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConstraintViolated = errors.New("constraint violated")

	// ErrExpired indicates a record exists but its expiry instant has passed.
	ErrExpired = errors.New("expired")
)

// ErrAlreadyUsed indicates a single-use record was consumed before.
// It wraps ErrNotFound: callers that check errors.Is(err, ErrNotFound)
// cannot distinguish a consumed record from a missing one. The distinct
// value exists for audit logging only.
var ErrAlreadyUsed = fmt.Errorf("already used: %w", ErrNotFound)

// MapDBErr maps database errors to appropriate errorz errors.
// If err is nil, MapDBErr returns nil.
func MapDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	sErr := sqlite3.Error{}
	if errors.As(err, &sErr) {
		if sErr.Code == sqlite3.ErrConstraint {
			return ErrConstraintViolated
		}
	}

	return err
}
