// Package csv reads oversized delimited files in bounded chunks.
//
// ChunkReader consumes the header once and then hands out consecutive slices
// of at most Size data rows. Only one chunk is materialized at a time, so
// peak memory is O(chunk size) regardless of file size.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"salesetl/internal/config"
)

// ErrFieldCount reports a data row whose width differs from the header.
var ErrFieldCount = errors.New("incorrect number of fields")

// RowError reports a chunk that held at least one malformed row: a parse
// failure or a width that differs from the header. The whole chunk is
// consumed and dropped; the reader stays usable and the next call to Next
// continues after it.
type RowError struct {
	Chunk     int // zero-based index of the dropped chunk
	FirstLine int // first and last file lines consumed by the chunk
	LastLine  int
	Rows      int // data rows consumed, malformed ones included
	Line      int // line of the first malformed row
	Err       error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v (chunk lines %d-%d dropped)", e.Line, e.Err, e.FirstLine, e.LastLine)
}

func (e *RowError) Unwrap() error { return e.Err }

// Options configures the underlying encoding/csv reader.
type Options struct {
	Comma      rune
	TrimSpace  bool
	LazyQuotes bool
}

// OptionsFromConfig derives reader options from the pipeline parser block.
func OptionsFromConfig(p config.Parser) Options {
	comma := ';'
	if p.Comma != "" {
		comma = []rune(p.Comma)[0]
	}
	return Options{
		Comma:      comma,
		TrimSpace:  p.Options.Bool("trim_space", true),
		LazyQuotes: p.Options.Bool("lazy_quotes", false),
	}
}

// Chunk is one bounded slice of the source.
type Chunk struct {
	// Index is the zero-based chunk number.
	Index int
	// FirstLine is the 1-based file line of Rows[0] (the header is line 1).
	FirstLine int
	// Header is shared by every chunk of the same reader; do not modify.
	Header []string
	Rows   [][]string
}

// Line returns the file line number of row i.
func (c Chunk) Line(i int) int { return c.FirstLine + i }

// ChunkReader yields consecutive chunks from a delimited source.
type ChunkReader struct {
	cr     *csv.Reader
	opt    Options
	size   int
	header []string
	line   int
	index  int
	done   bool
}

// NewChunkReader reads the header from r and returns a reader producing
// chunks of at most size rows.
func NewChunkReader(r io.Reader, size int, opt Options) (*ChunkReader, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0")
	}
	cr := csv.NewReader(r)
	if opt.Comma != 0 {
		cr.Comma = opt.Comma
	}
	cr.LazyQuotes = opt.LazyQuotes
	// Width is enforced after reading so the error names the line.
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv header: empty input")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	h = StripHeaderBOM(h)
	header := make([]string, len(h))
	for i, v := range h {
		header[i] = strings.TrimSpace(v)
	}

	return &ChunkReader{cr: cr, opt: opt, size: size, header: header, line: 1}, nil
}

// Header returns the trimmed header row.
func (c *ChunkReader) Header() []string { return c.header }

// Next returns the next chunk. It returns io.EOF once the source is
// exhausted; a short final chunk is returned with a nil error first.
//
// A chunk containing a malformed row is returned as a *RowError instead,
// since the chunk is the unit of loading. Callers may skip it and call Next
// again.
func (c *ChunkReader) Next() (Chunk, error) {
	if c.done {
		return Chunk{}, io.EOF
	}

	ch := Chunk{
		Index:     c.index,
		FirstLine: c.line + 1,
		Header:    c.header,
		Rows:      make([][]string, 0, min(c.size, 1024)),
	}
	var bad *RowError
	consumed := 0
	for consumed < c.size {
		rec, err := c.cr.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			break
		}
		c.line++
		consumed++
		if err == nil && len(rec) != len(c.header) {
			err = fmt.Errorf("%w: expected %d, got %d", ErrFieldCount, len(c.header), len(rec))
		} else if err != nil {
			err = fmt.Errorf("parse: %w", err)
		}
		if err != nil {
			if bad == nil {
				bad = &RowError{Chunk: c.index, Line: c.line, Err: err}
			}
			continue
		}
		if bad != nil {
			continue
		}
		if c.opt.TrimSpace {
			for i, v := range rec {
				rec[i] = strings.TrimSpace(v)
			}
		}
		ch.Rows = append(ch.Rows, rec)
	}

	if consumed == 0 {
		return Chunk{}, io.EOF
	}
	c.index++
	if bad != nil {
		bad.FirstLine, bad.LastLine, bad.Rows = ch.FirstLine, c.line, consumed
		return Chunk{}, bad
	}
	return ch, nil
}

// ReadAll drains the reader into a single chunk. It is meant for small
// sources such as the product catalog.
func (c *ChunkReader) ReadAll() (Chunk, error) {
	all := Chunk{FirstLine: c.line + 1, Header: c.header}
	for {
		ch, err := c.Next()
		if errors.Is(err, io.EOF) {
			return all, nil
		}
		if err != nil {
			return Chunk{}, err
		}
		all.Rows = append(all.Rows, ch.Rows...)
	}
}
