package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"time"

	"salesetl/internal/config"
	"salesetl/internal/datasource"
	"salesetl/internal/datasource/file"
	"salesetl/internal/datasource/httpds"
	"salesetl/internal/metrics"
	"salesetl/internal/storage"
)

// OpenFunc opens a configured source file.
type OpenFunc func(ctx context.Context, src config.SourceFile) (io.ReadCloser, error)

// OpenSource opens src from an http(s) URL or the local filesystem,
// decoding its charset.
func OpenSource(ctx context.Context, src config.SourceFile) (io.ReadCloser, error) {
	var ds datasource.Source
	if httpds.IsURL(src.Path) {
		ds = httpds.New(src.Path, httpds.Config{}).WithEncoding(src.Encoding)
	} else {
		ds = file.NewLocal(src.Path).WithEncoding(src.Encoding)
	}
	return ds.Open(ctx)
}

// Runner executes stages against one repository. It is not safe for
// concurrent use; stages run one after another.
type Runner struct {
	p    config.Pipeline
	repo storage.Repository

	// Open is the source seam; tests replace it.
	Open OpenFunc
	// Verbose logs one line per chunk.
	Verbose bool
}

// NewRunner returns a Runner for p, which must already have defaults applied.
func NewRunner(p config.Pipeline, repo storage.Repository) *Runner {
	return &Runner{p: p, repo: repo, Open: OpenSource}
}

// openSource resolves the source of a stage. A missing file or an empty
// path yields a skipped result through ErrSourceMissing.
func (r *Runner) openSource(ctx context.Context, src config.SourceFile) (io.ReadCloser, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrSourceMissing)
	}
	rc, err := r.Open(ctx, src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrSourceMissing, err)
	}
	return rc, err
}

// begin starts a stage result.
func (r *Runner) begin(stage string) (*Result, time.Time) {
	log.Printf("etl: stage %s started", stage)
	return &Result{Stage: stage, Status: StatusSuccess}, time.Now()
}

// finish stamps the elapsed time, logs and records metrics.
func (r *Runner) finish(res *Result, start time.Time) Result {
	res.Elapsed = time.Since(start)
	log.Printf("etl: %s", res)
	job := r.p.Job
	metrics.RecordStage(job, res.Stage, string(res.Status), res.Elapsed)
	metrics.RecordRow(job, metrics.KindRead, res.Read)
	metrics.RecordRow(job, metrics.KindRepaired, res.Repaired)
	metrics.RecordRow(job, metrics.KindDuplicates, res.Duplicates)
	metrics.RecordRow(job, metrics.KindRejected, res.Rejected)
	if res.Stage == StageExport {
		metrics.RecordRow(job, metrics.KindExported, res.Rows)
	} else {
		metrics.RecordRow(job, metrics.KindInserted, res.Rows)
		metrics.RecordBatches(job, res.Chunks)
	}
	return *res
}

// skipOrFail turns a source-open error into a skipped or partial result.
func skipOrFail(res *Result, err error) {
	if errors.Is(err, ErrSourceMissing) {
		res.Status = StatusSkipped
		res.Err = err
		return
	}
	res.fail(err)
}

func (r *Runner) chunkSize() int {
	if n := r.p.Parser.ChunkSize; n > 0 {
		return n
	}
	return config.DefaultChunkSize
}
