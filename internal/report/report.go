// Package report runs named SQL queries against the loaded tables and dumps
// each result to <dir>/<name>.csv with a header row.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"salesetl/internal/config"
	"salesetl/internal/storage"
)

// DefaultChunkSize is the number of rows fetched per round trip.
const DefaultChunkSize = 10000

// Result reports one query.
type Result struct {
	Name    string
	Path    string
	Rows    int64
	Err     error
	Elapsed time.Duration
}

// Runner executes report queries with bounded parallelism.
type Runner struct {
	Repo        storage.Repository
	Dir         string
	Parallelism int
	ChunkSize   int
	// Comma is the output separator (default ',').
	Comma rune
}

// NewRunner builds a Runner from the reports block of a pipeline.
func NewRunner(repo storage.Repository, cfg config.Reports) *Runner {
	return &Runner{Repo: repo, Dir: cfg.OutputDir, Parallelism: cfg.Parallelism}
}

// Run executes every query. A failing report does not stop the others;
// results come back in query order.
func (r *Runner) Run(ctx context.Context, queries []config.ReportQuery) []Result {
	results := make([]Result, len(queries))
	if len(queries) == 0 {
		return results
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		for i, q := range queries {
			results[i] = Result{Name: q.Name, Err: fmt.Errorf("report: mkdir %s: %w", r.Dir, err)}
		}
		return results
	}

	var g errgroup.Group
	limit := r.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			start := time.Now()
			res := r.runOne(ctx, q)
			res.Elapsed = time.Since(start)
			if res.Err != nil {
				log.Printf("report: %s failed: %v", q.Name, res.Err)
			} else {
				log.Printf("report: %s rows=%d file=%s elapsed=%s", q.Name, res.Rows, res.Path, res.Elapsed.Truncate(time.Millisecond))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Failed counts results with an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

func (r *Runner) runOne(ctx context.Context, q config.ReportQuery) Result {
	res := Result{Name: q.Name}
	if err := validName(q.Name); err != nil {
		res.Err = err
		return res
	}
	if strings.TrimSpace(q.SQL) == "" {
		res.Err = fmt.Errorf("report: %s: empty query", q.Name)
		return res
	}

	final := filepath.Join(r.Dir, q.Name+".csv")
	tmp, err := os.CreateTemp(r.Dir, "."+q.Name+"-*.csv")
	if err != nil {
		res.Err = fmt.Errorf("report: %s: %w", q.Name, err)
		return res
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	w.Comma = r.Comma
	if w.Comma == 0 {
		w.Comma = ','
	}
	size := r.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	wroteHeader := false
	record := []string(nil)
	err = r.Repo.Stream(ctx, q.SQL, size, func(c storage.Chunk) error {
		if !wroteHeader {
			if err := w.Write(c.Columns); err != nil {
				return err
			}
			wroteHeader = true
		}
		for _, row := range c.Rows {
			record = record[:0]
			for _, v := range row {
				record = append(record, FormatValue(v))
			}
			if err := w.Write(record); err != nil {
				return err
			}
			res.Rows++
		}
		return nil
	})
	w.Flush()
	err = errors.Join(err, w.Error(), tmp.Close())
	if err != nil {
		res.Err = fmt.Errorf("report: %s: %w", q.Name, err)
		return res
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		res.Err = fmt.Errorf("report: %s: %w", q.Name, err)
		return res
	}
	res.Path = final
	return res
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("report: invalid name %q", name)
	}
	return nil
}

// FormatValue renders a driver value for the CSV output. Dates at midnight
// print as YYYY-MM-DD.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
