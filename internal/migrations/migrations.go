// Package migrations holds the embedded schema history for the session
// runtime. Files are named NNNNN_description.sql and applied in order by
// goose; the runtime brings the database up to date on every start, with
// goose's version table making re-application a no-op.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var schemaFS embed.FS

// Run brings db up to the latest schema version.
func Run(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(schemaFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
