// Package json decodes customer-style JSON documents into generic records.
//
// Two shapes are accepted and streamed without materializing the input:
//
//   - a top-level array of objects: [ {...}, {...} ]
//   - newline-delimited objects (NDJSON): {...}\n{...}
//
// Numbers are decoded with UseNumber so callers decide how to map them.
package json

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode"
)

// Record is one decoded JSON object.
type Record = map[string]any

// Decoder wraps encoding/json.Decoder to provide a record-oriented API.
type Decoder struct {
	br      *bufio.Reader
	dec     *json.Decoder
	inArray bool
	index   int
}

// NewDecoder constructs a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{br: bufio.NewReader(r)}
}

// Index returns the zero-based position of the last record returned by Next.
func (d *Decoder) Index() int { return d.index - 1 }

// Next returns the next object. io.EOF is returned when the stream is
// exhausted. A non-object element is an error naming its position.
func (d *Decoder) Next() (Record, error) {
	if d.dec == nil {
		if err := d.start(); err != nil {
			return nil, err
		}
	}

	if d.inArray && !d.dec.More() {
		if _, err := d.dec.Token(); err != nil {
			return nil, fmt.Errorf("json parser: close array: %w", err)
		}
		d.inArray = false
		return nil, io.EOF
	}

	var raw any
	if err := d.dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("json parser: record %d: decode: %w", d.index, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("json parser: record %d: expected object, got %T", d.index, raw)
	}
	d.index++
	return obj, nil
}

// start peeks at the first significant byte; an opening bracket switches
// the decoder to element-at-a-time array mode.
func (d *Decoder) start() error {
	var first rune
	for {
		r, _, err := d.br.ReadRune()
		if errors.Is(err, io.EOF) {
			d.dec = json.NewDecoder(d.br)
			d.dec.UseNumber()
			return nil
		}
		if err != nil {
			return fmt.Errorf("json parser: read: %w", err)
		}
		if r == '\uFEFF' || unicode.IsSpace(r) {
			continue
		}
		first = r
		if err := d.br.UnreadRune(); err != nil {
			return fmt.Errorf("json parser: read: %w", err)
		}
		break
	}

	d.dec = json.NewDecoder(d.br)
	d.dec.UseNumber()
	if first == '[' {
		if _, err := d.dec.Token(); err != nil {
			return fmt.Errorf("json parser: open array: %w", err)
		}
		d.inArray = true
	}
	return nil
}

// DecodeAll reads every object from r. It is meant for tests and small
// inputs.
func DecodeAll(r io.Reader) ([]Record, error) {
	d := NewDecoder(r)
	var out []Record
	for {
		rec, err := d.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
