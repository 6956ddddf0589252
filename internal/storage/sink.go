package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"salesetl/internal/config"
)

// CopyFn writes one batch of rows aligned to columns and returns the number
// of rows written. Sink selects the repository call behind it from the load
// mode; tests substitute their own.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// Sink writes batches into one table under a load mode:
//
//	append   insert only
//	replace  empty the table once in Begin, then insert
//	upsert   delete rows matching KeyColumns, then insert (per batch)
//
// A Sink is used by one goroutine. Each Write is independent: a failed
// batch leaves earlier batches in place and is not retried.
type Sink struct {
	repo       Repository
	table      string
	columns    []string
	mode       string
	keyColumns []string
	copyFn     CopyFn

	begun    bool
	batches  int64
	total    int64
	start    time.Time
	lastTS   time.Time
	lastSeen int64
}

// NewSink validates the mode and returns a Sink for table.
func NewSink(repo Repository, table string, columns []string, mode string, keyColumns []string) (*Sink, error) {
	if repo == nil {
		return nil, fmt.Errorf("sink: repository must not be nil")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("sink: columns must not be empty")
	}
	s := &Sink{repo: repo, table: table, columns: columns, mode: mode, keyColumns: keyColumns}
	switch mode {
	case "", config.LoadAppend, config.LoadReplace:
		if s.mode == "" {
			s.mode = config.LoadAppend
		}
		s.copyFn = func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			return repo.CopyInto(ctx, table, cols, rows)
		}
	case config.LoadUpsert:
		if len(keyColumns) == 0 {
			return nil, fmt.Errorf("sink: upsert into %s requires key columns", table)
		}
		s.copyFn = func(ctx context.Context, cols []string, rows [][]any) (int64, error) {
			return repo.Upsert(ctx, table, keyColumns, cols, rows)
		}
	default:
		return nil, fmt.Errorf("sink: unknown load mode %q", mode)
	}
	return s, nil
}

// Mode reports the effective load mode.
func (s *Sink) Mode() string { return s.mode }

// Total reports the rows written so far.
func (s *Sink) Total() int64 { return s.total }

// Begin prepares the table for the run. In replace mode it empties the
// table; it must be called once, before the first Write.
func (s *Sink) Begin(ctx context.Context) error {
	if s.begun {
		return fmt.Errorf("sink: Begin called twice for %s", s.table)
	}
	s.begun = true
	s.start = time.Now()
	s.lastTS = s.start
	if s.mode == config.LoadReplace {
		if err := s.repo.Truncate(ctx, s.table); err != nil {
			return fmt.Errorf("truncate %s: %w", s.table, err)
		}
		log.Printf("loader: truncated %s (mode=replace)", s.table)
	}
	return nil
}

// Write loads one batch and logs a progress line on success.
func (s *Sink) Write(ctx context.Context, rows [][]any) (int64, error) {
	if !s.begun {
		if err := s.Begin(ctx); err != nil {
			return 0, err
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.copyFn(ctx, s.columns, rows)
	s.total += n
	if err != nil {
		log.Printf("loader: COPY failed table=%s after=%d total=%d err=%v", s.table, n, s.total, err)
		return n, err
	}

	s.batches++
	now := time.Now()
	sinceLast := now.Sub(s.lastTS)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(s.total-s.lastSeen) / sinceLast.Seconds()
	}
	log.Printf(
		"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
		s.batches,
		rps,
		n,
		s.total,
		now.Sub(s.start).Truncate(time.Millisecond),
		sinceLast.Truncate(time.Millisecond),
	)
	s.lastTS = now
	s.lastSeen = s.total
	return n, nil
}
