package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// Migration is a migration that was ran.
type Migration struct {
	// Sequence is the number of the migration. Starts at 0.
	Sequence   int
	Filename   string
	AppVersion string
	Timestamp  time.Time
}

var (
	// ErrNoTable indicates the migrations table does not exist.
	ErrNoTable = errors.New("migrations table does not exist")
	// ErrMismatch indicates a mismatch between migrations that ran before and the ones available now.
	ErrMismatch = errors.New("migrations mismatch")
)

const createTableQuery = `CREATE TABLE IF NOT EXISTS migrations (
	sequence    INTEGER PRIMARY KEY,
	filename    TEXT NOT NULL,
	app_version TEXT NOT NULL,
	timestamp   TIMESTAMP NOT NULL
)`

// RunFS runs all pending .sql migrations in the root of the provided fs.FS,
// in lexical filename order, inside a single transaction. It records every
// migration it ran in the migrations table and returns them. Migrations
// that ran before are verified against the files available now.
func RunFS(ctx context.Context, db *sql.DB, fileSys fs.FS, appVersion string, now time.Time) ([]Migration, error) {
	files, err := loadFiles(fileSys)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	ran, err := runAll(tx, files, appVersion, now)
	if err != nil {
		if rErr := tx.Rollback(); rErr != nil {
			err = errors.Join(err, rErr)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ran, nil
}

func runAll(tx *sql.Tx, files []file, appVersion string, now time.Time) ([]Migration, error) {
	if _, err := tx.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	before, err := query(func(q string) (*sql.Rows, error) {
		return tx.Query(q)
	})
	if err != nil {
		return nil, err
	}

	if len(before) > len(files) {
		return nil, fmt.Errorf(
			"found %d existing migrations but only have %d files: %w",
			len(before), len(files), ErrMismatch,
		)
	}

	// The migrations that ran before must line up exactly with the
	// files available now.
	for i, b := range before {
		if b.Sequence != i {
			return nil, fmt.Errorf("migration sequence mismatch, wanted %d got %d: %w", i, b.Sequence, ErrMismatch)
		}
		if b.Filename != files[i].name {
			return nil, fmt.Errorf("migration %d had filename %s, but now encountering %s: %w", i, b.Filename, files[i].name, ErrMismatch)
		}
	}

	ranNow := make([]Migration, 0)
	for i, f := range files[len(before):] {
		m := Migration{
			Sequence:   len(before) + i,
			Filename:   f.name,
			AppVersion: appVersion,
			Timestamp:  now,
		}

		if _, err := tx.Exec(f.content); err != nil {
			return nil, fmt.Errorf("migration [%d] %q failed: %w", m.Sequence, m.Filename, err)
		}

		_, err := tx.Exec(
			`INSERT INTO migrations (sequence, filename, app_version, timestamp) VALUES (?, ?, ?, ?)`,
			m.Sequence, m.Filename, m.AppVersion, m.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to record migration: %w", err)
		}

		ranNow = append(ranNow, m)
	}

	return ranNow, nil
}

// QueryMigrations queries the given db for all migrations that ran.
// If the migration table does not exist yet, it returns the ErrNoTable error.
func QueryMigrations(ctx context.Context, db *sql.DB) ([]Migration, error) {
	return query(func(q string) (*sql.Rows, error) {
		return db.QueryContext(ctx, q)
	})
}

func query(rowsFunc func(q string) (*sql.Rows, error)) ([]Migration, error) {
	rows, err := rowsFunc(`SELECT sequence, filename, app_version, timestamp FROM migrations ORDER BY sequence`)
	if err != nil {
		if strings.Contains(err.Error(), "no such table") {
			return nil, ErrNoTable
		}
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	migrations := make([]Migration, 0)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Sequence, &m.Filename, &m.AppVersion, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		migrations = append(migrations, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate over rows: %w", err)
	}

	return migrations, nil
}

type file struct {
	name    string
	content string
}

func loadFiles(fileSys fs.FS) ([]file, error) {
	entries, err := fs.ReadDir(fileSys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	files := make([]file, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := fs.ReadFile(fileSys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %q: %w", entry.Name(), err)
		}

		files = append(files, file{
			name:    entry.Name(),
			content: string(content),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].name < files[j].name
	})

	return files, nil
}
