package etl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"salesetl/internal/config"
	csvparser "salesetl/internal/parser/csv"
	jsonparser "salesetl/internal/parser/json"
	"salesetl/internal/sales"
	"salesetl/internal/storage"
	"salesetl/internal/transformer/builtin"
)

// LoadProducts replaces the product catalog with the products file.
func (r *Runner) LoadProducts(ctx context.Context) Result {
	res, start := r.begin(StageProducts)
	rc, err := r.openSource(ctx, r.p.Sources.Products)
	if err != nil {
		skipOrFail(res, err)
		return r.finish(res, start)
	}
	defer rc.Close()

	if err := r.loadProducts(ctx, rc, res); err != nil {
		res.fail(err)
	}
	return r.finish(res, start)
}

func (r *Runner) loadProducts(ctx context.Context, src io.Reader, res *Result) error {
	cr, err := csvparser.NewChunkReader(src, r.chunkSize(), csvparser.OptionsFromConfig(r.p.Parser))
	if err != nil {
		return fmt.Errorf("products: %w", err)
	}
	db := r.p.Storage.DB
	sink, err := storage.NewSink(r.repo, db.QualifiedTable(db.ProductsTable), sales.ProductColumns, config.LoadReplace, nil)
	if err != nil {
		return err
	}
	if err := sink.Begin(ctx); err != nil {
		return err
	}
	for {
		ch, err := cr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("products: read: %w", err)
		}
		res.Chunks++
		res.Read += int64(len(ch.Rows))

		prods, err := builtin.Products(ch)
		if err != nil {
			res.Rejected += int64(len(ch.Rows))
			return fmt.Errorf("products: %w", err)
		}
		rows := make([][]any, len(prods))
		for i, p := range prods {
			rows[i] = p.Values()
		}
		n, err := sink.Write(ctx, rows)
		res.Rows += n
		if err != nil {
			return fmt.Errorf("products: %w", err)
		}
	}
}

// LoadCustomers replaces the customer table with the customers document.
func (r *Runner) LoadCustomers(ctx context.Context) Result {
	res, start := r.begin(StageCustomers)
	rc, err := r.openSource(ctx, r.p.Sources.Customers)
	if err != nil {
		skipOrFail(res, err)
		return r.finish(res, start)
	}
	defer rc.Close()

	if err := r.loadCustomers(ctx, rc, res); err != nil {
		res.fail(err)
	}
	return r.finish(res, start)
}

func (r *Runner) loadCustomers(ctx context.Context, src io.Reader, res *Result) error {
	db := r.p.Storage.DB
	sink, err := storage.NewSink(r.repo, db.QualifiedTable(db.CustomersTable), sales.CustomerColumns, config.LoadReplace, nil)
	if err != nil {
		return err
	}
	if err := sink.Begin(ctx); err != nil {
		return err
	}

	size := r.chunkSize()
	batch := make([][]any, 0, min(size, 4096))
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		res.Chunks++
		n, err := sink.Write(ctx, batch)
		res.Rows += n
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("customers: %w", err)
		}
		return nil
	}

	dec := jsonparser.NewDecoder(src)
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return flush()
		}
		if err != nil {
			return fmt.Errorf("customers: %w", err)
		}
		res.Read++
		c, err := builtin.Customer(rec, dec.Index())
		if err != nil {
			res.Rejected++
			return fmt.Errorf("customers: %w", err)
		}
		batch = append(batch, c.Values())
		if len(batch) >= size {
			if err := flush(); err != nil {
				return err
			}
		}
	}
}
