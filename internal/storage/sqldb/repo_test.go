package sqldb

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"salesetl/internal/storage"
)

func newRepo(tb testing.TB, maxParams int) *Repository {
	tb.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		tb.Fatalf("open sqlite :memory:: %v", err)
	}
	db.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = db.Close() })

	r := New(db, Dialect{
		Name:        "sqlite",
		MaxParams:   maxParams,
		TruncateSQL: func(q string) string { return "DELETE FROM " + q },
	})
	mustExec(tb, r, `CREATE TABLE t (k TEXT NOT NULL, p TEXT NOT NULL, v REAL)`)
	return r
}

func mustExec(tb testing.TB, r *Repository, stmt string) {
	tb.Helper()
	if err := r.Exec(context.Background(), stmt); err != nil {
		tb.Fatalf("exec %q: %v", stmt, err)
	}
}

func readAll(tb testing.TB, r *Repository, q string) [][]any {
	tb.Helper()
	var out [][]any
	if err := r.Stream(context.Background(), q, 100, func(c storage.Chunk) error {
		out = append(out, c.Rows...)
		return nil
	}); err != nil {
		tb.Fatalf("Stream: %v", err)
	}
	return out
}

var cols = []string{"k", "p", "v"}

func TestCopyInto_SplitsByParamLimit(t *testing.T) {
	t.Parallel()

	// 7 params allow 2 rows of 3 columns per statement.
	r := newRepo(t, 7)
	rows := [][]any{{"a", "x", 1.0}, {"b", "x", 2.0}, {"c", "x", 3.0}, {"d", "x", nil}, {"e", "x", 5.0}}
	n, err := r.CopyInto(context.Background(), "t", cols, rows)
	if err != nil {
		t.Fatalf("CopyInto: %v", err)
	}
	if n != 5 {
		t.Fatalf("n = %d, want 5", n)
	}
	got := readAll(t, r, "SELECT k, v FROM t ORDER BY k")
	want := [][]any{{"a", 1.0}, {"b", 2.0}, {"c", 3.0}, {"d", nil}, {"e", 5.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
}

func TestCopyInto_RowWidthMismatchRollsBack(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 999)
	_, err := r.CopyInto(context.Background(), "t", cols, [][]any{{"a", "x", 1.0}, {"b"}})
	if err == nil || !strings.Contains(err.Error(), "row 1") {
		t.Fatalf("err = %v", err)
	}
	if got := readAll(t, r, "SELECT k FROM t"); len(got) != 0 {
		t.Fatalf("partial batch committed: %v", got)
	}
}

func TestUpsert_DeletesMatchingKeys(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 999)
	ctx := context.Background()
	if _, err := r.CopyInto(ctx, "t", cols, [][]any{{"a", "x", 1.0}, {"a", "y", 2.0}, {"b", "x", 3.0}}); err != nil {
		t.Fatalf("CopyInto: %v", err)
	}
	n, err := r.Upsert(ctx, "t", []string{"k", "p"}, cols, [][]any{{"a", "x", 10.0}, {"c", "x", 4.0}})
	if err != nil || n != 2 {
		t.Fatalf("Upsert: n=%d err=%v", n, err)
	}
	got := readAll(t, r, "SELECT k, p, v FROM t ORDER BY k, p")
	want := [][]any{{"a", "x", 10.0}, {"a", "y", 2.0}, {"b", "x", 3.0}, {"c", "x", 4.0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
}

func TestUpsert_UnknownKey(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 999)
	if _, err := r.Upsert(context.Background(), "t", []string{"zzz"}, cols, [][]any{{"a", "x", 1.0}}); err == nil {
		t.Fatal("expected error for key outside column list")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 999)
	ctx := context.Background()
	if _, err := r.CopyInto(ctx, "t", cols, [][]any{{"a", "x", 1.0}}); err != nil {
		t.Fatalf("CopyInto: %v", err)
	}
	if err := r.Truncate(ctx, "t"); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	if got := readAll(t, r, "SELECT k FROM t"); len(got) != 0 {
		t.Fatalf("rows left: %v", got)
	}
}

func TestStream_ChunksAndStops(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 999)
	ctx := context.Background()
	var rows [][]any
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		rows = append(rows, []any{k, "x", 1.0})
	}
	if _, err := r.CopyInto(ctx, "t", cols, rows); err != nil {
		t.Fatalf("CopyInto: %v", err)
	}

	var sizes []int
	err := r.Stream(ctx, "SELECT k FROM t ORDER BY k", 2, func(c storage.Chunk) error {
		if diff := cmp.Diff([]string{"k"}, c.Columns); diff != "" {
			t.Errorf("columns (-want +got):\n%s", diff)
		}
		sizes = append(sizes, len(c.Rows))
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if diff := cmp.Diff([]int{2, 2, 1}, sizes); diff != "" {
		t.Fatalf("chunk sizes (-want +got):\n%s", diff)
	}

	stop := context.Canceled
	calls := 0
	err = r.Stream(ctx, "SELECT k FROM t", 2, func(storage.Chunk) error {
		calls++
		return stop
	})
	if err != stop || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}

	if err := r.Stream(ctx, "SELECT k FROM t", 0, func(storage.Chunk) error { return nil }); err == nil {
		t.Fatal("chunk size 0 accepted")
	}
}

func TestStream_EmptyResultAndExactMultiple(t *testing.T) {
	t.Parallel()

	r := newRepo(t, 999)
	ctx := context.Background()
	rows := [][]any{{"a", "x", 1.0}, {"b", "x", 2.0}, {"c", "x", 3.0}, {"d", "x", 4.0}}
	if _, err := r.CopyInto(ctx, "t", cols, rows); err != nil {
		t.Fatalf("CopyInto: %v", err)
	}

	var got []storage.Chunk
	err := r.Stream(ctx, "SELECT k, v FROM t WHERE k = 'zz'", 2, func(c storage.Chunk) error {
		got = append(got, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 1 || len(got[0].Rows) != 0 {
		t.Fatalf("empty result gave %d chunks: %+v", len(got), got)
	}
	if diff := cmp.Diff([]string{"k", "v"}, got[0].Columns); diff != "" {
		t.Errorf("columns (-want +got):\n%s", diff)
	}

	var sizes []int
	err = r.Stream(ctx, "SELECT k FROM t ORDER BY k", 2, func(c storage.Chunk) error {
		sizes = append(sizes, len(c.Rows))
		return nil
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if diff := cmp.Diff([]int{2, 2}, sizes); diff != "" {
		t.Fatalf("chunk sizes (-want +got):\n%s", diff)
	}
}

func TestStatementRendering(t *testing.T) {
	t.Parallel()

	r := New(nil, Dialect{Name: "mssql", Placeholder: AtP})
	got := r.insertSQL("dbo.vendas", []string{"a", "b"}, 2)
	want := "INSERT INTO [dbo].[vendas] ([a], [b]) VALUES (@p1, @p2), (@p3, @p4)"
	if got != want {
		t.Errorf("insert:\n got %s\nwant %s", got, want)
	}
	if got := r.deleteSQL("dbo.vendas", []string{"a", "b"}); got != "DELETE FROM [dbo].[vendas] WHERE [a] = @p1 AND [b] = @p2" {
		t.Errorf("delete: %s", got)
	}

	my := New(nil, Dialect{Name: "mysql"})
	if got := my.insertSQL("vendas", []string{"a"}, 1); got != "INSERT INTO `vendas` (`a`) VALUES (?)" {
		t.Errorf("mysql insert: %s", got)
	}
}
