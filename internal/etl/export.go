package etl

import (
	"context"
	"errors"

	"salesetl/internal/export"
)

// ExportSales writes the enriched, partitioned Parquet dataset.
func (r *Runner) ExportSales(ctx context.Context) Result {
	res, start := r.begin(StageExport)
	if r.p.Export.Disabled {
		res.Status = StatusSkipped
		res.Err = errors.New("export disabled")
		return r.finish(res, start)
	}
	st, err := export.Run(ctx, r.repo, export.OptionsFromConfig(r.p))
	res.Read = st.Rows
	res.Rows = st.Rows
	res.Chunks = st.Chunks
	if err != nil {
		res.fail(err)
	}
	return r.finish(res, start)
}
