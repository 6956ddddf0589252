package parquet

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/apache/arrow/go/v17/parquet/file"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

// Summary describes a written dataset.
type Summary struct {
	Files     []string // relative to the root, sorted
	Rows      int64
	RowGroups int
	Sum       float64 // total of the summed column over non-null values
}

// Summarize reads every Parquet file under root and totals sumColumn. An
// empty sumColumn only counts rows.
func Summarize(ctx context.Context, root, sumColumn string) (Summary, error) {
	var s Summary
	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() || !strings.HasSuffix(path, ".parquet") {
			return nil
		}
		rows, groups, sum, err := readFile(ctx, path, sumColumn)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		s.Files = append(s.Files, filepath.ToSlash(rel))
		s.Rows += rows
		s.RowGroups += groups
		s.Sum += sum
		return nil
	})
	sort.Strings(s.Files)
	return s, err
}

func readFile(ctx context.Context, path, sumColumn string) (rows int64, groups int, sum float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, err
	}
	defer f.Close()

	rdr, err := file.NewParquetReader(f)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parquet: open %s: %w", path, err)
	}
	defer rdr.Close()
	groups = rdr.NumRowGroups()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 64 * 1024}, memory.NewGoAllocator())
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parquet: reader %s: %w", path, err)
	}
	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parquet: read %s: %w", path, err)
	}
	defer tbl.Release()

	if sumColumn == "" {
		return tbl.NumRows(), groups, 0, nil
	}
	idx := tbl.Schema().FieldIndices(sumColumn)
	if len(idx) == 0 {
		return 0, 0, 0, fmt.Errorf("parquet: %s has no column %q", path, sumColumn)
	}
	for _, chunk := range tbl.Column(idx[0]).Data().Chunks() {
		switch arr := chunk.(type) {
		case *array.Float64:
			for i := 0; i < arr.Len(); i++ {
				if arr.IsValid(i) {
					sum += arr.Value(i)
				}
			}
		case *array.Int64:
			for i := 0; i < arr.Len(); i++ {
				if arr.IsValid(i) {
					sum += float64(arr.Value(i))
				}
			}
		default:
			return 0, 0, 0, fmt.Errorf("parquet: column %q is %s, not numeric", sumColumn, chunk.DataType())
		}
	}
	return tbl.NumRows(), groups, sum, nil
}
