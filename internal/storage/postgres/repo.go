// Package postgres implements storage.Repository on pgx v5. Bulk loads use
// COPY; upserts stage the batch in a temporary table and run a
// delete-then-insert against the target inside one transaction; reads go
// through a server-side cursor.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
}

// NewRepository opens a pool, pings it and returns a Close function for
// cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", pgErr(err))
	}
	return &Repository{pool: pool, cfg: cfg}, pool.Close, nil
}

// Kind implements storage.Repository.
func (r *Repository) Kind() string { return "postgres" }

// CopyInto bulk-loads rows with COPY FROM STDIN.
func (r *Repository) CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, pgErr(err))
	}
	return n, nil
}

// Upsert stages rows in a temporary table, deletes target rows whose key
// columns match a staged row and inserts the staged rows. The temporary
// table is dropped at commit.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(keyColumns) == 0 {
		return 0, fmt.Errorf("upsert %s: no key columns", table)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tmp := tempName(table)
	stmts := upsertStatements(table, tmp, keyColumns, columns)

	if _, err := tx.Exec(ctx, stmts.create); err != nil {
		return 0, fmt.Errorf("create temp: %w", pgErr(err))
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into temp: %w", pgErr(err))
	}
	if _, err := tx.Exec(ctx, stmts.delete); err != nil {
		return 0, fmt.Errorf("delete matching rows: %w", pgErr(err))
	}
	if _, err := tx.Exec(ctx, stmts.insert); err != nil {
		return 0, fmt.Errorf("insert phase: %w", pgErr(err))
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", pgErr(err))
	}
	return n, nil
}

// Truncate empties table.
func (r *Repository) Truncate(ctx context.Context, table string) error {
	if _, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+pgFQN(table)); err != nil {
		return pgErr(err)
	}
	return nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return pgErr(err)
	}
	return nil
}

type upsertSQL struct {
	create, delete, insert string
}

func upsertStatements(table, tmp string, keyColumns, columns []string) upsertSQL {
	fq := pgFQN(table)
	cols := strings.Join(mapIdent(columns), ", ")
	return upsertSQL{
		create: fmt.Sprintf(
			"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WHERE false",
			pgIdent(tmp), cols, fq),
		delete: fmt.Sprintf(
			"DELETE FROM %s AS T USING %s AS S WHERE %s",
			fq, pgIdent(tmp), buildDeleteCondition(keyColumns)),
		insert: fmt.Sprintf(
			"INSERT INTO %s (%s) SELECT %s FROM %s",
			fq, cols, cols, pgIdent(tmp)),
	}
}

// buildDeleteCondition matches target (T) and staged (S) rows on every key
// column.
func buildDeleteCondition(keyColumns []string) string {
	conds := make([]string, 0, len(keyColumns))
	for _, col := range keyColumns {
		conds = append(conds, fmt.Sprintf("T.%s = S.%s", pgIdent(col), pgIdent(col)))
	}
	return strings.Join(conds, " AND ")
}

func tempName(table string) string {
	return "tmp_" + strings.ReplaceAll(table, ".", "_")
}

// pgErr adds the server detail and SQLSTATE of a *pgconn.PgError to the
// message, keeping the original error in the chain.
func pgErr(err error) error {
	var pe *pgconn.PgError
	if errors.As(err, &pe) && pe.Detail != "" {
		return fmt.Errorf("%w: %s (%s)", err, pe.Detail, pe.SQLState())
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.vendas" to
// "public"."vendas".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
