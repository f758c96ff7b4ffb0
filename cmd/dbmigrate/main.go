package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/evdwaal/staylink/internal"
	"github.com/evdwaal/staylink/internal/db"
	"github.com/evdwaal/staylink/internal/db/migrate"
	"github.com/evdwaal/staylink/migrations"
)

const helpText = `Usage: dbmigrate [sqlite_file]`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, helpText)
		os.Exit(1)
	}

	dbFile := os.Args[1]

	sqlDB, err := db.OpenSQLite(dbFile, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*60)
	defer cancel()

	applied, err := migrate.RunFS(ctx, sqlDB, migrations.FS, internal.BuildRevision, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	for _, migration := range applied {
		fmt.Printf("%d: %s\n", migration.Sequence, migration.Filename)
	}
}
