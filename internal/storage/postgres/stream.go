package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"salesetl/internal/storage"
)

const cursorName = "etl_stream"

// Stream runs query through a server-side cursor and fetches chunkSize rows
// per round trip, so the result set is never materialized client side.
// The cursor lives in a read-only transaction that is closed on return.
func (r *Repository) Stream(ctx context.Context, query string, chunkSize int, fn func(storage.Chunk) error) error {
	if chunkSize <= 0 {
		return fmt.Errorf("stream: chunk size must be > 0")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DECLARE %s NO SCROLL CURSOR FOR %s", cursorName, query)); err != nil {
		return fmt.Errorf("declare cursor: %w", pgErr(err))
	}
	fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", chunkSize, cursorName)

	sent := false
	for {
		rows, err := tx.Query(ctx, fetch)
		if err != nil {
			return fmt.Errorf("fetch: %w", pgErr(err))
		}
		fds := rows.FieldDescriptions()
		cols := make([]string, len(fds))
		for i, fd := range fds {
			cols[i] = fd.Name
		}

		chunk := storage.Chunk{Columns: cols, Rows: make([][]any, 0, chunkSize)}
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				rows.Close()
				return fmt.Errorf("decode row: %w", err)
			}
			for i := range vals {
				vals[i] = plainValue(vals[i])
			}
			chunk.Rows = append(chunk.Rows, vals)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("fetch: %w", pgErr(err))
		}
		if len(chunk.Rows) == 0 && sent {
			break
		}
		if err := fn(chunk); err != nil {
			return err
		}
		sent = true
		if len(chunk.Rows) < chunkSize {
			break
		}
	}

	if _, err := tx.Exec(ctx, "CLOSE "+cursorName); err != nil {
		return fmt.Errorf("close cursor: %w", pgErr(err))
	}
	return tx.Commit(ctx)
}

// plainValue converts pgx wire types that have no natural Go counterpart to
// plain values: NUMERIC becomes float64, intervals and UUIDs become strings.
func plainValue(v any) any {
	switch t := v.(type) {
	case pgtype.Numeric:
		if !t.Valid {
			return nil
		}
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case float32:
		return float64(t)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	case []byte:
		return string(t)
	default:
		return v
	}
}
