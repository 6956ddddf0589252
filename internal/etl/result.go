// Package etl runs the pipeline stages: the product, sales and customer
// loads and the partitioned export. Each stage returns a Result instead of
// an error so the driver can decide whether the run continues.
package etl

import (
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of one stage.
type Status string

const (
	StatusSuccess Status = "success"
	// StatusPartial means the stage stopped or skipped data after an error;
	// batches committed before the error stand.
	StatusPartial Status = "partial"
	// StatusSkipped means the stage had nothing to do (source missing or
	// stage disabled).
	StatusSkipped Status = "skipped"
	// StatusFatal means the run cannot continue.
	StatusFatal Status = "fatal"
)

// ErrSourceMissing marks a stage skipped because its input does not exist.
var ErrSourceMissing = errors.New("source missing")

// Result reports one stage.
type Result struct {
	Stage  string
	Status Status
	Err    error

	Read       int64 // source rows seen
	Rows       int64 // rows written
	Chunks     int64
	Repaired   int64 // sale keys rewritten by reconciliation
	Duplicates int64 // rows dropped by deduplication
	Rejected   int64 // rows in chunks that failed normalization
	Elapsed    time.Duration
}

// OK reports whether the stage finished without error.
func (r Result) OK() bool { return r.Status == StatusSuccess || r.Status == StatusSkipped }

func (r Result) String() string {
	s := fmt.Sprintf("stage=%s status=%s read=%d rows=%d chunks=%d elapsed=%s",
		r.Stage, r.Status, r.Read, r.Rows, r.Chunks, r.Elapsed.Truncate(time.Millisecond))
	if r.Repaired > 0 || r.Duplicates > 0 || r.Rejected > 0 {
		s += fmt.Sprintf(" repaired=%d duplicates=%d rejected=%d", r.Repaired, r.Duplicates, r.Rejected)
	}
	if r.Err != nil {
		s += fmt.Sprintf(" err=%v", r.Err)
	}
	return s
}

// fail marks res partial with err unless a stricter status is already set.
func (r *Result) fail(err error) {
	r.Err = errors.Join(r.Err, err)
	if r.Status != StatusFatal {
		r.Status = StatusPartial
	}
}
