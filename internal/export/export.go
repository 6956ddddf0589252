// Package export streams the consolidated sales table, enriched with the
// product description and customer name, into a year/month partitioned
// Parquet dataset.
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"salesetl/internal/config"
	"salesetl/internal/export/parquet"
	"salesetl/internal/sales"
	"salesetl/internal/storage"
)

// Options configures one export run.
type Options struct {
	Query       string
	ChunkSize   int
	Path        string
	DateColumn  string
	YearColumn  string
	MonthColumn string
	Compression string
}

// Stats reports what an export wrote.
type Stats struct {
	Rows       int64
	Chunks     int64
	Partitions int
	Path       string
}

// OptionsFromConfig builds Options from a pipeline with defaults applied.
func OptionsFromConfig(p config.Pipeline) Options {
	e := p.Export
	q := e.Query
	if q == "" {
		q = DefaultQuery(p.Storage.DB)
	}
	return Options{
		Query:       q,
		ChunkSize:   e.ChunkSize,
		Path:        e.Path,
		DateColumn:  e.DateColumn,
		YearColumn:  e.YearColumn,
		MonthColumn: e.MonthColumn,
		Compression: e.Compression,
	}
}

// DefaultQuery joins every sale with its product description and customer
// name. Sales without a catalog match keep NULLs.
func DefaultQuery(db config.DBConfig) string {
	cols := make([]string, 0, len(sales.SaleColumns)+2)
	for _, c := range sales.SaleColumns {
		cols = append(cols, "v."+c)
	}
	cols = append(cols, "p.des_produto", "c.nom_nome AS nom_cliente")
	return fmt.Sprintf(
		"SELECT %s FROM %s v LEFT JOIN %s p ON p.%s = v.%s LEFT JOIN %s c ON c.%s = v.%s",
		strings.Join(cols, ", "),
		db.QualifiedTable(db.SalesTable),
		db.QualifiedTable(db.ProductsTable), sales.ColProductID, sales.ColProductID,
		db.QualifiedTable(db.CustomersTable), sales.ColCustomerID, sales.ColCustomerID,
	)
}

// Run streams opt.Query in chunks of opt.ChunkSize and appends each chunk to
// the dataset under opt.Path. The dataset is created on the first chunk,
// with its schema inferred from that chunk, and is closed on every return.
// A query with no rows leaves opt.Path untouched.
func Run(ctx context.Context, repo storage.Repository, opt Options) (st Stats, err error) {
	if opt.Query == "" {
		return st, errors.New("export: empty query")
	}
	if opt.Path == "" {
		return st, errors.New("export: empty output path")
	}
	if opt.DateColumn == "" {
		opt.DateColumn = sales.ColSaleDate
	}
	st.Path = opt.Path

	var (
		ds      *parquet.Dataset
		dateIdx = -1
		start   = time.Now()
	)
	defer func() {
		if ds == nil {
			return
		}
		st.Partitions = len(ds.Partitions())
		if cerr := ds.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	err = repo.Stream(ctx, opt.Query, opt.ChunkSize, func(ch storage.Chunk) error {
		if len(ch.Rows) == 0 {
			return nil
		}
		if ds == nil {
			dateIdx = indexOf(ch.Columns, opt.DateColumn)
			if dateIdx < 0 {
				return fmt.Errorf("export: query has no %q column", opt.DateColumn)
			}
			schema := parquet.InferSchema(ch.Columns, ch.Rows, opt.DateColumn)
			var cerr error
			ds, cerr = parquet.Create(opt.Path, schema, parquet.Options{
				YearColumn:   opt.YearColumn,
				MonthColumn:  opt.MonthColumn,
				Compression:  opt.Compression,
				RowGroupRows: int64(opt.ChunkSize),
			})
			if cerr != nil {
				return cerr
			}
		}

		groups, order, perr := partition(ch.Rows, dateIdx)
		if perr != nil {
			return fmt.Errorf("export: chunk %d: %w", st.Chunks+1, perr)
		}
		for _, p := range order {
			if werr := ds.Write(p, groups[p]); werr != nil {
				return werr
			}
		}
		st.Chunks++
		st.Rows += int64(len(ch.Rows))
		log.Printf("export: chunk #%d rows=%d total=%d elapsed=%s",
			st.Chunks, len(ch.Rows), st.Rows, time.Since(start).Truncate(time.Millisecond))
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("export: %w", err)
	}
	if ds == nil {
		log.Printf("export: query returned no rows; %s left untouched", opt.Path)
	}
	return st, nil
}

// partition groups rows by the year and month of their date value, keeping
// first-seen partition order.
func partition(rows [][]any, dateIdx int) (map[parquet.Partition][][]any, []parquet.Partition, error) {
	groups := make(map[parquet.Partition][][]any)
	var order []parquet.Partition
	for i, row := range rows {
		if dateIdx >= len(row) || row[dateIdx] == nil {
			return nil, nil, fmt.Errorf("row %d: missing date", i+1)
		}
		d, err := parquet.ParseDate(row[dateIdx])
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		p := parquet.Partition{Year: d.Year(), Month: int(d.Month())}
		if _, ok := groups[p]; !ok {
			order = append(order, p)
		}
		groups[p] = append(groups[p], row)
	}
	return groups, order, nil
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}
