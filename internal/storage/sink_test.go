package storage

import (
	"context"
	"errors"
	"testing"

	"salesetl/internal/config"
)

func TestSink_Modes(t *testing.T) {
	t.Parallel()

	cols := []string{"k", "v"}
	rows := [][]any{{"a", 1}, {"b", 2}}

	tests := []struct {
		mode       string
		wantTrunc  int
		wantCopies int
		wantUps    int
	}{
		{config.LoadAppend, 0, 2, 0},
		{"", 0, 2, 0},
		{config.LoadReplace, 1, 2, 0},
		{config.LoadUpsert, 0, 0, 2},
	}
	for _, tt := range tests {
		tt := tt
		t.Run("mode="+tt.mode, func(t *testing.T) {
			t.Parallel()
			repo := &fakeRepo{}
			s, err := NewSink(repo, "public.vendas", cols, tt.mode, []string{"k"})
			if err != nil {
				t.Fatalf("NewSink: %v", err)
			}
			ctx := context.Background()
			if err := s.Begin(ctx); err != nil {
				t.Fatalf("Begin: %v", err)
			}
			for i := 0; i < 2; i++ {
				if _, err := s.Write(ctx, rows); err != nil {
					t.Fatalf("Write: %v", err)
				}
			}
			if len(repo.truncs) != tt.wantTrunc || len(repo.copies) != tt.wantCopies || len(repo.upserts) != tt.wantUps {
				t.Fatalf("truncs=%d copies=%d upserts=%d", len(repo.truncs), len(repo.copies), len(repo.upserts))
			}
			if s.Total() != 4 {
				t.Fatalf("Total = %d, want 4", s.Total())
			}
		})
	}
}

func TestSink_ReplaceTruncatesOnceEvenWithoutBegin(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s, err := NewSink(repo, "t", []string{"a"}, config.LoadReplace, nil)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.Write(context.Background(), [][]any{{i}}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if len(repo.truncs) != 1 {
		t.Fatalf("truncs = %d, want 1", len(repo.truncs))
	}
	if err := s.Begin(context.Background()); err == nil {
		t.Fatal("second Begin should fail")
	}
}

func TestSink_FailedBatchKeepsEarlier(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s, _ := NewSink(repo, "t", []string{"a"}, config.LoadAppend, nil)
	ctx := context.Background()
	if _, err := s.Write(ctx, [][]any{{1}, {2}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	repo.copyErr = errors.New("disk full")
	if _, err := s.Write(ctx, [][]any{{3}}); !errors.Is(err, repo.copyErr) {
		t.Fatalf("want copy error, got %v", err)
	}
	if s.Total() != 2 || len(repo.copies) != 1 {
		t.Fatalf("total=%d copies=%d", s.Total(), len(repo.copies))
	}
}

func TestNewSink_Errors(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	if _, err := NewSink(nil, "t", []string{"a"}, "", nil); err == nil {
		t.Error("nil repo accepted")
	}
	if _, err := NewSink(repo, "t", nil, "", nil); err == nil {
		t.Error("empty columns accepted")
	}
	if _, err := NewSink(repo, "t", []string{"a"}, config.LoadUpsert, nil); err == nil {
		t.Error("upsert without keys accepted")
	}
	if _, err := NewSink(repo, "t", []string{"a"}, "merge", nil); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestSink_EmptyWriteIsNoop(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	s, _ := NewSink(repo, "t", []string{"a"}, "", nil)
	n, err := s.Write(context.Background(), nil)
	if err != nil || n != 0 || len(repo.copies) != 0 {
		t.Fatalf("n=%d err=%v copies=%d", n, err, len(repo.copies))
	}
}
