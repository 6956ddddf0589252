package sqldb

import (
	"context"
	"fmt"

	"salesetl/internal/storage"
)

// Stream runs query and hands rows to fn in chunks of chunkSize. database/sql
// drivers fetch rows incrementally, so only the current chunk is held.
func (r *Repository) Stream(ctx context.Context, query string, chunkSize int, fn func(storage.Chunk) error) error {
	if chunkSize <= 0 {
		return fmt.Errorf("stream: chunk size must be > 0")
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: query: %w", r.d.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("%s: columns: %w", r.d.Name, err)
	}

	sent := false
	chunk := storage.Chunk{Columns: cols, Rows: make([][]any, 0, chunkSize)}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("%s: scan: %w", r.d.Name, err)
		}
		for i, v := range vals {
			vals[i] = plainValue(v)
		}
		chunk.Rows = append(chunk.Rows, vals)
		if len(chunk.Rows) == chunkSize {
			if err := fn(chunk); err != nil {
				return err
			}
			sent = true
			chunk = storage.Chunk{Columns: cols, Rows: make([][]any, 0, chunkSize)}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%s: rows: %w", r.d.Name, err)
	}
	if len(chunk.Rows) > 0 || !sent {
		return fn(chunk)
	}
	return nil
}

// plainValue maps driver values onto the storage.Chunk value set.
func plainValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
