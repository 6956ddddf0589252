package storage

import (
	"context"
	"sync"
)

// fakeRepo records calls and returns canned errors.
type fakeRepo struct {
	mu      sync.Mutex
	kind    string
	execs   []string
	copies  [][][]any
	upserts [][]string
	truncs  []string
	copyErr error
	execErr error
	closed  bool
}

func (f *fakeRepo) Kind() string {
	if f.kind == "" {
		return "postgres"
	}
	return f.kind
}

func (f *fakeRepo) CopyInto(_ context.Context, _ string, _ []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.copies = append(f.copies, rows)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Upsert(_ context.Context, _ string, keys, _ []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, keys)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Truncate(_ context.Context, table string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.truncs = append(f.truncs, table)
	return nil
}

func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execErr != nil {
		return f.execErr
	}
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) Stream(context.Context, string, int, func(Chunk) error) error { return nil }

func (f *fakeRepo) Close() { f.closed = true }
