// Package sqldb implements storage.Repository over database/sql for the
// backends without a native bulk API in this module (sqlite, mysql) and as
// the base of the mssql backend. Dialect differences are captured in a
// Dialect value; identifier quoting comes from internal/schema/ddl.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"salesetl/internal/schema/ddl"
	"salesetl/internal/storage"
)

// BulkFn loads rows with a backend-specific bulk primitive inside tx.
type BulkFn func(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error)

// Dialect describes how a backend spells the statements this package emits.
type Dialect struct {
	// Name is the registered kind and the ddl dialect ("sqlite", "mysql", ...).
	Name string

	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// MaxParams caps the bind parameters of one statement; multi-row INSERTs
	// are split to stay below it.
	MaxParams int

	// TruncateSQL empties a quoted table. Empty selects TRUNCATE TABLE.
	TruncateSQL func(quoted string) string

	// Bulk, when set, replaces multi-row INSERT for CopyInto and the insert
	// half of Upsert.
	Bulk BulkFn
}

// QuestionMark is the "?" placeholder style of sqlite and mysql.
func QuestionMark(int) string { return "?" }

// AtP is the "@pN" placeholder style of SQL Server.
func AtP(n int) string { return "@p" + strconv.Itoa(n) }

// Repository is a database/sql implementation of storage.Repository.
type Repository struct {
	db *sql.DB
	d  Dialect
}

// New wraps an open *sql.DB.
func New(db *sql.DB, d Dialect) *Repository {
	if d.Placeholder == nil {
		d.Placeholder = QuestionMark
	}
	if d.MaxParams <= 0 {
		d.MaxParams = 999
	}
	return &Repository{db: db, d: d}
}

// DB exposes the underlying handle.
func (r *Repository) DB() *sql.DB { return r.db }

// Kind implements storage.Repository.
func (r *Repository) Kind() string { return r.d.Name }

func (r *Repository) quote(fqn string) string { return ddl.QuoteFQN(r.d.Name, fqn) }

// CopyInto inserts rows in one transaction.
func (r *Repository) CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("%s: CopyInto: columns must not be empty", r.d.Name)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}
	n, err := r.insert(ctx, tx, table, columns, rows)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.d.Name, err)
	}
	return n, nil
}

// Upsert deletes rows matching any incoming key, then inserts the batch, in
// one transaction.
func (r *Repository) Upsert(ctx context.Context, table string, keyColumns, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	keyPos, err := positions(keyColumns, columns)
	if err != nil {
		return 0, fmt.Errorf("%s: upsert %s: %w", r.d.Name, table, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}
	rollback := func() { _ = tx.Rollback() }

	del, err := tx.PrepareContext(ctx, r.deleteSQL(table, keyColumns))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("%s: prepare delete: %w", r.d.Name, err)
	}
	args := make([]any, len(keyPos))
	for i, row := range rows {
		for j, p := range keyPos {
			args[j] = row[p]
		}
		if _, err := del.ExecContext(ctx, args...); err != nil {
			_ = del.Close()
			rollback()
			return 0, fmt.Errorf("%s: delete row %d: %w", r.d.Name, i, err)
		}
	}
	_ = del.Close()

	n, err := r.insert(ctx, tx, table, columns, rows)
	if err != nil {
		rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.d.Name, err)
	}
	return n, nil
}

// Truncate empties table.
func (r *Repository) Truncate(ctx context.Context, table string) error {
	q := r.quote(table)
	stmt := "TRUNCATE TABLE " + q
	if r.d.TruncateSQL != nil {
		stmt = r.d.TruncateSQL(q)
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: truncate %s: %w", r.d.Name, table, err)
	}
	return nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("%s: exec: %w", r.d.Name, err)
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() { _ = r.db.Close() }

func (r *Repository) insert(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("%s: row %d has %d values, want %d", r.d.Name, i, len(row), len(columns))
		}
	}
	if r.d.Bulk != nil {
		return r.d.Bulk(ctx, tx, table, columns, rows)
	}

	per := r.d.MaxParams / len(columns)
	if per < 1 {
		per = 1
	}
	var total int64
	args := make([]any, 0, per*len(columns))
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		args = args[:0]
		for _, row := range rows[start:end] {
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, r.insertSQL(table, columns, end-start), args...)
		if err != nil {
			return total, fmt.Errorf("%s: insert rows %d-%d: %w", r.d.Name, start, end-1, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		} else {
			total += int64(end - start)
		}
	}
	return total, nil
}

// insertSQL renders INSERT INTO t (c1, c2) VALUES (?, ?), (?, ?) for n rows.
func (r *Repository) insertSQL(table string, columns []string, n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(r.quote(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ddl.QuoteIdent(r.d.Name, c))
	}
	b.WriteString(") VALUES ")
	p := 1
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.d.Placeholder(p))
			p++
		}
		b.WriteByte(')')
	}
	return b.String()
}

func (r *Repository) deleteSQL(table string, keyColumns []string) string {
	conds := make([]string, len(keyColumns))
	for i, k := range keyColumns {
		conds[i] = ddl.QuoteIdent(r.d.Name, k) + " = " + r.d.Placeholder(i+1)
	}
	return "DELETE FROM " + r.quote(table) + " WHERE " + strings.Join(conds, " AND ")
}

func positions(keys, columns []string) ([]int, error) {
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = -1
		for j, c := range columns {
			if c == k {
				out[i] = j
				break
			}
		}
		if out[i] < 0 {
			return nil, fmt.Errorf("key column %q not in column list", k)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no key columns")
	}
	return out, nil
}

var _ storage.Repository = (*Repository)(nil)
