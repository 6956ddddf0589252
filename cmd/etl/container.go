// Package main wires the sales pipeline end to end: connect, bootstrap the
// schema, load products, sales and customers, export the partitioned
// dataset, optionally publish it, and run the reports. The file keeps the
// CLI layer thin: it depends on storage-agnostic interfaces and never
// imports a database driver directly.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"salesetl/internal/config"
	"salesetl/internal/etl"
	"salesetl/internal/export/publish"
	"salesetl/internal/report"
	"salesetl/internal/schema"
	"salesetl/internal/storage"
)

// Function variables used as test seams. Production values point to the
// real implementations.
var (
	connectFn = storage.Connect

	newUploaderFn = func(cfg config.S3Publish) (publish.Uploader, error) {
		return publish.NewClient(cfg, publish.CredentialsFromEnv(os.Getenv))
	}

	// newRunnerFn lets tests swap the source opener.
	newRunnerFn = etl.NewRunner
)

// runSummary collects every stage outcome of one run.
type runSummary struct {
	Stages    []etl.Result
	Published publish.Stats
	Reports   []report.Result
	Elapsed   time.Duration
}

// Failed reports whether any stage ended partial or fatal, or any report
// failed.
func (s runSummary) Failed() bool {
	for _, r := range s.Stages {
		if !r.OK() {
			return true
		}
	}
	return report.Failed(s.Reports) > 0
}

// run executes one pipeline. The returned error is non-nil only when the
// run could not continue (no connection, failed schema bootstrap); stage
// failures are reported in the summary.
func run(ctx context.Context, p config.Pipeline, verbose bool) (sum runSummary, err error) {
	start := time.Now()
	defer func() { sum.Elapsed = time.Since(start) }()

	db := p.Storage.DB
	log.Printf("connecting to storage kind=%s", p.Storage.Kind)
	repo, err := connectFn(ctx,
		storage.Config{Kind: p.Storage.Kind, DSN: db.DSN},
		db.ConnectRetries,
		time.Duration(db.ConnectDelayMS)*time.Millisecond,
	)
	if err != nil {
		return sum, err
	}
	defer repo.Close()

	if db.AutoCreateTable {
		if err := storage.EnsureSchema(ctx, repo, schema.FromConfig(db)); err != nil {
			sum.Stages = append(sum.Stages, etl.Result{Stage: "schema", Status: etl.StatusFatal, Err: err})
			return sum, fmt.Errorf("schema bootstrap: %w", err)
		}
		log.Printf("schema: tables ready (%s, %s, %s)",
			db.QualifiedTable(db.ProductsTable), db.QualifiedTable(db.SalesTable), db.QualifiedTable(db.CustomersTable))
	}

	r := newRunnerFn(p, repo)
	r.Verbose = verbose

	sum.Stages = append(sum.Stages, r.LoadProducts(ctx))
	salesRes := r.LoadSales(ctx)
	sum.Stages = append(sum.Stages, salesRes)
	sum.Stages = append(sum.Stages, r.LoadCustomers(ctx))

	if ctx.Err() != nil {
		return sum, ctx.Err()
	}

	exportRes := r.ExportSales(ctx)
	sum.Stages = append(sum.Stages, exportRes)

	if exportRes.Status == etl.StatusSuccess && p.Export.S3.Bucket != "" {
		sum.Stages = append(sum.Stages, publishExport(ctx, p.Export, &sum.Published))
	}

	if len(p.Reports.Queries) > 0 {
		rr := report.NewRunner(repo, p.Reports)
		sum.Reports = rr.Run(ctx, p.Reports.Queries)
	}
	return sum, nil
}

// publishExport uploads the export tree and reports it as a stage.
func publishExport(ctx context.Context, e config.Export, st *publish.Stats) etl.Result {
	start := time.Now()
	res := etl.Result{Stage: "publish", Status: etl.StatusSuccess}
	up, err := newUploaderFn(e.S3)
	if err == nil {
		*st, err = publish.Upload(ctx, up, e.Path, e.S3.Bucket, e.S3.Prefix)
	}
	if err != nil {
		res.Status = etl.StatusPartial
		res.Err = err
	}
	res.Rows = int64(st.Objects)
	res.Elapsed = time.Since(start)
	log.Printf("etl: %s", res)
	return res
}

// logSummary prints one line per stage and report and the total time.
func logSummary(sum runSummary) {
	log.Printf("summary: %d stages, %d reports", len(sum.Stages), len(sum.Reports))
	for _, r := range sum.Stages {
		log.Printf("summary: %s", r)
	}
	for _, r := range sum.Reports {
		if r.Err != nil {
			log.Printf("summary: report=%s status=failed err=%v", r.Name, r.Err)
			continue
		}
		log.Printf("summary: report=%s rows=%d file=%s", r.Name, r.Rows, r.Path)
	}
	log.Printf("total elapsed: %s", sum.Elapsed.Truncate(time.Millisecond))
}

// exitCode maps a run outcome to the process exit status: 0 when every
// stage succeeded or was skipped, 1 for a fatal error, 2 for partial runs.
func exitCode(sum runSummary, err error) int {
	switch {
	case err != nil:
		return 1
	case sum.Failed():
		return 2
	}
	return 0
}
