// Package parquet writes and inspects the Hive-partitioned Parquet tree the
// export stage produces:
//
//	<root>/year=2023/month=7/part-0.parquet
//
// Partition values live in the directory names only; the files carry the
// remaining columns.
package parquet

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	pqlib "github.com/apache/arrow/go/v17/parquet"
	"github.com/apache/arrow/go/v17/parquet/compress"
	"github.com/apache/arrow/go/v17/parquet/pqarrow"
)

// Partition identifies one year/month directory.
type Partition struct {
	Year  int
	Month int
}

// Options configures a Dataset.
type Options struct {
	// YearColumn and MonthColumn name the partition directories.
	YearColumn  string
	MonthColumn string

	// Compression is "snappy" (default), "zstd", "gzip" or "none".
	Compression string

	// RowGroupRows caps the rows of one row group (0 = library default).
	// Every Write starts a new row group, so the export chunk size is the
	// natural value.
	RowGroupRows int64
}

// Codec maps a compression name to the Parquet codec.
func Codec(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("parquet: unknown compression %q", name)
}

type partWriter struct {
	path string
	f    *os.File
	w    *pqarrow.FileWriter
	rows int64
}

// Dataset is a partitioned Parquet writer. Writers are opened lazily per
// partition and stay open until Close, but each Write is flushed to its file
// as a row group, so memory is bounded by one chunk rather than the
// partition. A Dataset is used by one goroutine.
type Dataset struct {
	root   string
	opt    Options
	schema *arrow.Schema
	props  *pqlib.WriterProperties
	mem    memory.Allocator

	writers map[Partition]*partWriter
	closed  bool
}

// Create clears the partition directories under root and returns a Dataset
// whose files follow schema. A root holding anything other than
// <YearColumn>=* directories is refused rather than wiped.
func Create(root string, schema *arrow.Schema, opt Options) (*Dataset, error) {
	if root == "" {
		return nil, errors.New("parquet: dataset root must not be empty")
	}
	if schema == nil || schema.NumFields() == 0 {
		return nil, errors.New("parquet: schema must have at least one field")
	}
	if opt.YearColumn == "" {
		opt.YearColumn = "year"
	}
	if opt.MonthColumn == "" {
		opt.MonthColumn = "month"
	}
	codec, err := Codec(opt.Compression)
	if err != nil {
		return nil, err
	}
	if err := clearPartitions(root, opt.YearColumn); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("parquet: create %s: %w", root, err)
	}
	popts := []pqlib.WriterProperty{pqlib.WithCompression(codec)}
	if opt.RowGroupRows > 0 {
		popts = append(popts, pqlib.WithMaxRowGroupLength(opt.RowGroupRows))
	}
	return &Dataset{
		root:    root,
		opt:     opt,
		schema:  schema,
		props:   pqlib.NewWriterProperties(popts...),
		mem:     memory.NewGoAllocator(),
		writers: make(map[Partition]*partWriter),
	}, nil
}

// clearPartitions removes the partition directories of a previous export.
func clearPartitions(root, yearColumn string) error {
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("parquet: read %s: %w", root, err)
	}
	prefix := yearColumn + "="
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			return fmt.Errorf("parquet: %s contains %q, which is not a %s* partition; refusing to clear it", root, e.Name(), prefix)
		}
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return fmt.Errorf("parquet: clear %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Schema returns the file schema.
func (d *Dataset) Schema() *arrow.Schema { return d.schema }

// Root returns the dataset directory.
func (d *Dataset) Root() string { return d.root }

// PartitionDir returns the directory of p relative to the root.
func (d *Dataset) PartitionDir(p Partition) string {
	return filepath.Join(
		fmt.Sprintf("%s=%04d", d.opt.YearColumn, p.Year),
		fmt.Sprintf("%s=%d", d.opt.MonthColumn, p.Month),
	)
}

// Write appends rows (aligned to the schema fields) to partition p.
func (d *Dataset) Write(p Partition, rows [][]any) error {
	if d.closed {
		return errors.New("parquet: write on closed dataset")
	}
	if len(rows) == 0 {
		return nil
	}
	pw, err := d.writer(p)
	if err != nil {
		return err
	}

	b := array.NewRecordBuilder(d.mem, d.schema)
	defer b.Release()
	n := d.schema.NumFields()
	for r, row := range rows {
		if len(row) != n {
			return fmt.Errorf("parquet: row %d has %d values, schema has %d fields", r, len(row), n)
		}
		for i, v := range row {
			if err := appendValue(b.Field(i), v); err != nil {
				return fmt.Errorf("parquet: column %s: %w", d.schema.Field(i).Name, err)
			}
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	if err := pw.w.Write(rec); err != nil {
		return fmt.Errorf("parquet: write %s: %w", pw.path, err)
	}
	pw.rows += int64(len(rows))
	return nil
}

func (d *Dataset) writer(p Partition) (*partWriter, error) {
	if pw, ok := d.writers[p]; ok {
		return pw, nil
	}
	dir := filepath.Join(d.root, d.PartitionDir(p))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("parquet: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "part-0.parquet")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("parquet: create %s: %w", path, err)
	}
	w, err := pqarrow.NewFileWriter(d.schema, f, d.props, pqarrow.DefaultWriterProps())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("parquet: open writer %s: %w", path, err)
	}
	pw := &partWriter{path: path, f: f, w: w}
	d.writers[p] = pw
	return pw, nil
}

// Partitions returns the partitions written so far, in order.
func (d *Dataset) Partitions() []Partition {
	out := make([]Partition, 0, len(d.writers))
	for p := range d.writers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// Close flushes every partition writer and closes its file. It is safe to
// call more than once; errors from all writers are joined.
func (d *Dataset) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	for _, p := range d.Partitions() {
		pw := d.writers[p]
		if err := pw.w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("parquet: close %s: %w", pw.path, err))
		}
		if err := pw.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, fmt.Errorf("parquet: close %s: %w", pw.path, err))
		}
		log.Printf("parquet: wrote %s rows=%d", pw.path, pw.rows)
	}
	return errors.Join(errs...)
}
