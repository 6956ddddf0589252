// Package sqlite implements a SQLite-backed storage.Repository on
// modernc.org/sqlite (pure Go, no cgo). SQLite has no bulk-load API, so
// inserts are multi-row INSERT statements inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"salesetl/internal/storage/sqldb"
)

// maxParams is SQLITE_MAX_VARIABLE_NUMBER for builds before 3.32.
const maxParams = 999

// Config holds SQLite repository configuration.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:etl.db?_pragma=busy_timeout(5000)"
	//   ":memory:"
	DSN string
}

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// Dialect returns the sqldb dialect for SQLite.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:        "sqlite",
		Placeholder: sqldb.QuestionMark,
		MaxParams:   maxParams,
		TruncateSQL: func(q string) string { return "DELETE FROM " + q },
	}
}

// Open opens a SQLite handle limited to one connection. SQLite serializes
// writers anyway, and a ":memory:" database exists per connection.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// New wraps an open handle.
func New(db *sql.DB) *Repository {
	return &Repository{Repository: sqldb.New(db, Dialect())}
}

// NewRepository opens and pings a SQLite database and returns a Repository
// plus a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA foreign_keys = ON;")
	return New(db), func() { _ = db.Close() }, nil
}
