package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"salesetl/internal/config"
	"salesetl/internal/export/parquet"
	"salesetl/internal/sales"
	"salesetl/internal/schema"
	"salesetl/internal/storage"
	"salesetl/internal/storage/sqlite"
)

func f64(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// seed loads three tables into a fresh sqlite database.
func seed(t *testing.T) (storage.Repository, config.DBConfig) {
	t.Helper()
	ctx := context.Background()

	repo, closeFn, err := sqlite.NewRepository(ctx, sqlite.Config{DSN: filepath.Join(t.TempDir(), "etl.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	t.Cleanup(closeFn)

	db := config.DBConfig{SalesTable: "vendas", ProductsTable: "produtos", CustomersTable: "clientes"}
	if err := storage.EnsureSchema(ctx, repo, schema.FromConfig(db)); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	rows := sales.SaleRows([]sales.Sale{
		{SaleKey: "1|10", StoreID: "1", CustomerID: 7, CustomerType: "F", ProductID: "P1", SaleDate: day(2023, 1, 5), Net: f64(10)},
		{SaleKey: "1|11", StoreID: "1", CustomerID: 0, CustomerType: "F", ProductID: "P2", SaleDate: day(2023, 1, 28), Net: f64(2.5)},
		{SaleKey: "2|12", StoreID: "2", CustomerID: 7, CustomerType: "J", ProductID: "P1", SaleDate: day(2023, 2, 1), Net: f64(4)},
		{SaleKey: "2|13", StoreID: "2", CustomerID: 8, CustomerType: "F", ProductID: "P9", SaleDate: day(2022, 12, 31)},
	})
	if _, err := repo.CopyInto(ctx, "vendas", sales.SaleColumns, rows); err != nil {
		t.Fatalf("CopyInto vendas: %v", err)
	}
	prods := [][]any{
		sales.Product{ProductID: "P1", Description: "ARROZ"}.Values(),
		sales.Product{ProductID: "P2", Description: "FEIJAO"}.Values(),
	}
	if _, err := repo.CopyInto(ctx, "produtos", sales.ProductColumns, prods); err != nil {
		t.Fatalf("CopyInto produtos: %v", err)
	}
	born := day(1990, 3, 1)
	custs := [][]any{sales.Customer{CustomerID: 7, CustomerType: "F", Name: "ANA", BirthDate: &born}.Values()}
	if _, err := repo.CopyInto(ctx, "clientes", sales.CustomerColumns, custs); err != nil {
		t.Fatalf("CopyInto clientes: %v", err)
	}
	return repo, db
}

func TestRunPartitionsAndPreservesTotals(t *testing.T) {
	t.Parallel()

	repo, db := seed(t)
	out := filepath.Join(t.TempDir(), "vendas_enriquecidas")

	p := config.Pipeline{Storage: config.Storage{Kind: "sqlite", DB: db}, Export: config.Export{Path: out, ChunkSize: 2}}
	p.ApplyDefaults()
	opt := OptionsFromConfig(p)

	st, err := Run(context.Background(), repo, opt)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Rows != 4 || st.Chunks != 2 || st.Partitions != 3 {
		t.Fatalf("stats = %+v", st)
	}

	sum, err := parquet.Summarize(context.Background(), out, sales.ColNet)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	wantFiles := []string{
		"year=2022/month=12/part-0.parquet",
		"year=2023/month=1/part-0.parquet",
		"year=2023/month=2/part-0.parquet",
	}
	if diff := cmp.Diff(wantFiles, sum.Files); diff != "" {
		t.Errorf("files (-want +got):\n%s", diff)
	}
	if sum.Rows != 4 || sum.Sum != 16.5 {
		t.Errorf("rows=%d sum=%v, want 4 and 16.5", sum.Rows, sum.Sum)
	}
	// Each chunk lands in its own row group per partition it touches.
	if sum.RowGroups < st.Partitions || sum.RowGroups > int(st.Chunks)*st.Partitions {
		t.Errorf("row groups = %d for %d chunks over %d partitions", sum.RowGroups, st.Chunks, st.Partitions)
	}
}

func TestRunEmptyResultLeavesPathAlone(t *testing.T) {
	t.Parallel()

	repo, db := seed(t)
	out := filepath.Join(t.TempDir(), "keep")
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	q := DefaultQuery(db) + " WHERE v.cod_id_loja = 'none'"
	st, err := Run(context.Background(), repo, Options{Query: q, ChunkSize: 10, Path: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Rows != 0 || st.Partitions != 0 {
		t.Errorf("stats = %+v", st)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output dir removed: %v", err)
	}
}

func TestDefaultQuery(t *testing.T) {
	t.Parallel()

	q := DefaultQuery(config.DBConfig{Schema: "public", SalesTable: "vendas", ProductsTable: "produtos", CustomersTable: "clientes"})
	for _, want := range []string{
		"FROM public.vendas v",
		"LEFT JOIN public.produtos p ON p.cod_id_produto = v.cod_id_produto",
		"LEFT JOIN public.clientes c ON c.cod_id_cliente = v.cod_id_cliente",
		"c.nom_nome AS nom_cliente",
		"v.data_venda",
	} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
}

// streamRepo replays fixed chunks and then fails.
type streamRepo struct {
	storage.Repository
	chunks []storage.Chunk
	err    error
}

func (s *streamRepo) Stream(ctx context.Context, query string, n int, fn func(storage.Chunk) error) error {
	for _, c := range s.chunks {
		if err := fn(c); err != nil {
			return err
		}
	}
	return s.err
}

func TestRunClosesDatasetOnStreamError(t *testing.T) {
	t.Parallel()

	cols := []string{"k", "data_venda", "v"}
	boom := errors.New("cursor lost")
	repo := &streamRepo{
		chunks: []storage.Chunk{{Columns: cols, Rows: [][]any{{"a", "2023-03-01", 1.0}}}},
		err:    boom,
	}
	out := filepath.Join(t.TempDir(), "ds")

	st, err := Run(context.Background(), repo, Options{Query: "q", ChunkSize: 1, Path: out})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if st.Rows != 1 || st.Partitions != 1 {
		t.Errorf("stats = %+v", st)
	}
	// The partial file must be readable, so the footer was flushed.
	sum, err := parquet.Summarize(context.Background(), out, "v")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if sum.Rows != 1 || sum.Sum != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		opt    Options
		chunks []storage.Chunk
	}{
		{name: "no query", opt: Options{Path: "x"}},
		{name: "no path", opt: Options{Query: "q"}},
		{
			name:   "missing date column",
			opt:    Options{Query: "q", Path: "x"},
			chunks: []storage.Chunk{{Columns: []string{"a"}, Rows: [][]any{{1}}}},
		},
		{
			name:   "null date",
			opt:    Options{Query: "q", Path: "x"},
			chunks: []storage.Chunk{{Columns: []string{"data_venda"}, Rows: [][]any{{nil}}}},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if tc.opt.Path != "" {
				tc.opt.Path = filepath.Join(t.TempDir(), tc.opt.Path)
			}
			if _, err := Run(context.Background(), &streamRepo{chunks: tc.chunks}, tc.opt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
