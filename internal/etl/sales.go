package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"salesetl/internal/config"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/sales"
	"salesetl/internal/storage"
	"salesetl/internal/transformer/builtin"
)

// Stage names.
const (
	StageProducts  = "products"
	StageSales     = "sales"
	StageCustomers = "customers"
	StageExport    = "export"
)

// LoadSales streams the sales file chunk by chunk through the normalizer,
// the key reconciler and the deduplicator into the sales table. Chunk N is
// committed before chunk N+1 is read.
//
// A chunk failing normalization or holding a malformed CSV row is not loaded. With on_schema_error=abort
// the stage stops there; with skip-chunk it continues and reports partial.
// A sink error always stops the stage.
func (r *Runner) LoadSales(ctx context.Context) Result {
	res, start := r.begin(StageSales)

	rc, err := r.openSource(ctx, r.p.Sources.Sales)
	if err != nil {
		skipOrFail(res, err)
		return r.finish(res, start)
	}
	defer rc.Close()

	if err := r.loadSales(ctx, rc, res); err != nil {
		res.fail(err)
	}
	return r.finish(res, start)
}

func (r *Runner) loadSales(ctx context.Context, src io.Reader, res *Result) error {
	cr, err := csvparser.NewChunkReader(src, r.chunkSize(), csvparser.OptionsFromConfig(r.p.Parser))
	if err != nil {
		return fmt.Errorf("sales: %w", err)
	}
	norm, err := builtin.NewNormalizer(r.p.Parser.SyntheticColumns)
	if err != nil {
		return fmt.Errorf("sales: %w", err)
	}
	db := r.p.Storage.DB
	sink, err := storage.NewSink(r.repo, db.QualifiedTable(db.SalesTable), sales.SaleColumns, db.LoadMode, db.KeyColumns)
	if err != nil {
		return err
	}
	if err := sink.Begin(ctx); err != nil {
		return err
	}

	dedup := builtin.DeDup{}
	skip := r.p.Parser.OnSchemaError == config.OnSchemaSkipChunk
	maxChunks := int64(r.p.Runtime.MaxChunks)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ch, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var rowErr *csvparser.RowError
		if errors.As(err, &rowErr) {
			res.Chunks++
			res.Read += int64(rowErr.Rows)
			res.Rejected += int64(rowErr.Rows)
			serr := &builtin.SchemaError{Line: rowErr.Line, Column: "(record)", Err: rowErr.Err}
			if !skip {
				return fmt.Errorf("sales: chunk #%d: %w", rowErr.Chunk+1, serr)
			}
			log.Printf("etl: sales chunk #%d skipped lines=%d-%d rows=%d err=%v",
				rowErr.Chunk+1, rowErr.FirstLine, rowErr.LastLine, rowErr.Rows, serr)
			res.fail(fmt.Errorf("sales: chunk #%d: %w", rowErr.Chunk+1, serr))
			continue
		}
		if err != nil {
			return fmt.Errorf("sales: read: %w", err)
		}
		res.Chunks++
		res.Read += int64(len(ch.Rows))

		split, err := norm.Apply(ch)
		if err != nil {
			res.Rejected += int64(len(ch.Rows))
			if !skip || errors.Is(err, builtin.ErrMissingColumn) {
				return fmt.Errorf("sales: chunk #%d: %w", ch.Index+1, err)
			}
			log.Printf("etl: sales chunk #%d skipped rows=%d err=%v", ch.Index+1, len(ch.Rows), err)
			res.fail(fmt.Errorf("sales: chunk #%d: %w", ch.Index+1, err))
			continue
		}

		rows, repaired := builtin.Reconcile(split)
		kept := dedup.Apply(rows)
		res.Repaired += int64(repaired)
		res.Duplicates += int64(len(rows) - len(kept))

		n, err := sink.Write(ctx, sales.SaleRows(kept))
		res.Rows += n
		if err != nil {
			return fmt.Errorf("sales: chunk #%d: %w", ch.Index+1, err)
		}
		if r.Verbose {
			log.Printf("etl: sales chunk #%d lines=%d-%d rows=%d repaired=%d duplicates=%d",
				ch.Index+1, ch.FirstLine, ch.Line(len(ch.Rows)-1), n, repaired, len(rows)-len(kept))
		}
		if maxChunks > 0 && res.Chunks >= maxChunks {
			log.Printf("etl: sales stopped after max_chunks=%d", maxChunks)
			return nil
		}
	}
}
