// Package database opens the runtime's SQLite store via libSQL.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

// The connection pool is shared between request handlers and the background
// scan workers, so it is tuned for many short writers: WAL keeps readers off
// the write lock and the busy timeout absorbs contention between a ping burst
// and a scan tick.
const busyTimeoutMS = 5000

// Open opens the database at path (":memory:" in tests) and applies the
// runtime's pragma set.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("libsql", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMS),
		"PRAGMA foreign_keys=ON",
	} {
		if err := pragma(ctx, db, stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// pragma runs one PRAGMA through QueryContext: libSQL rejects Exec for
// pragmas that return a row, and draining the rows covers the silent ones.
func pragma(ctx context.Context, db *sql.DB, stmt string) error {
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return fmt.Errorf("executing %s: %w", stmt, err)
	}
	return rows.Close()
}
