// Package storage contains the backend-agnostic repository contract, the
// backend registry and the sales sink built on top of them.
//
// Backends (postgres, sqlite, mssql, mysql) register a Factory from their
// init functions; importing internal/storage/all enables every built-in
// backend. Callers obtain a Repository with New or Connect and stay unaware
// of the concrete driver.
package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Chunk is one block of rows produced by Repository.Stream. Rows are aligned
// to Columns. Numeric values arrive as int64 or float64, text as string and
// dates as time.Time (or, for drivers without date support, as string).
type Chunk struct {
	Columns []string
	Rows    [][]any
}

// Repository is the contract every relational backend implements. Table
// names are dotted schema.table strings; the backend quotes them.
type Repository interface {
	// Kind returns the registered backend name ("postgres", "sqlite", ...).
	Kind() string

	// CopyInto bulk-inserts rows aligned to columns and returns the number of
	// rows written.
	CopyInto(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Upsert deletes target rows whose keyColumns match any incoming row and
	// then inserts the batch, atomically per call.
	Upsert(ctx context.Context, table string, keyColumns, columns []string, rows [][]any) (int64, error)

	// Truncate removes every row of table.
	Truncate(ctx context.Context, table string) error

	// Exec runs a statement without results (DDL, maintenance).
	Exec(ctx context.Context, sql string) error

	// Stream runs query and hands its result to fn in chunks of at most
	// chunkSize rows. Rows are fetched incrementally; at most one chunk is
	// held in memory. fn is called at least once: an empty result yields a
	// single chunk with Columns set and no Rows. An error from fn stops the
	// stream and is returned.
	Stream(ctx context.Context, query string, chunkSize int, fn func(Chunk) error) error

	Close()
}

// Config is the backend-neutral connection configuration.
type Config struct {
	Kind string
	DSN  string
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// twice replaces the earlier factory.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// ListKinds returns the registered backend names, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens a Repository with the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Connect calls New up to attempts times, sleeping delay between failures.
// It returns the last error when every attempt fails or ctx is done.
func Connect(ctx context.Context, cfg Config, attempts int, delay time.Duration) (Repository, error) {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		repo, err := New(ctx, cfg)
		if err == nil {
			if i > 1 {
				log.Printf("storage: connected kind=%s attempt=%d", cfg.Kind, i)
			}
			return repo, nil
		}
		lastErr = err
		log.Printf("storage: connect attempt %d/%d failed kind=%s err=%v", i, attempts, cfg.Kind, err)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("connect %s after %d attempts: %w", cfg.Kind, attempts, lastErr)
}
