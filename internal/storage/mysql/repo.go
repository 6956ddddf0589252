// Package mysql implements a MySQL-backed storage.Repository on the shared
// database/sql repository, using multi-row INSERT for bulk loads.
package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"salesetl/internal/storage/sqldb"
)

// maxParams is the prepared-statement placeholder limit of the server.
const maxParams = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	*sqldb.Repository
}

// Dialect returns the sqldb dialect for MySQL.
func Dialect() sqldb.Dialect {
	return sqldb.Dialect{
		Name:        "mysql",
		Placeholder: sqldb.QuestionMark,
		MaxParams:   maxParams,
	}
}

// ParseDSN parses dsn and enables parseTime so DATE columns scan as
// time.Time.
func ParseDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg, nil
}

// NewRepository opens and pings a MySQL database and returns a Close
// function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mcfg, err := ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	conn, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	return &Repository{Repository: sqldb.New(db, Dialect())}, func() { _ = db.Close() }, nil
}
