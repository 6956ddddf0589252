// Package datadog forwards pipeline metrics to a DogStatsD agent. Metric
// names are shortened to dotted Datadog names under a namespace and labels
// become sorted tags.
package datadog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/DataDog/datadog-go/v5/statsd"

	"salesetl/internal/metrics"
)

// DefaultNamespace prefixes every metric when Config.Namespace is empty.
const DefaultNamespace = "salesetl."

// names maps facade metric names to Datadog names. Unknown names pass through.
var names = map[string]string{
	metrics.StageTotal:    "stage.runs",
	metrics.StageDuration: "stage.duration",
	metrics.RecordsTotal:  "records",
	metrics.BatchesTotal:  "batches",
}

// Config holds Datadog backend configuration.
type Config struct {
	// Addr is the DogStatsD address, "host:port" or "unix:///path".
	Addr       string
	Namespace  string
	GlobalTags []string
}

// Backend implements metrics.Backend over a statsd client.
type Backend struct {
	client statsd.ClientInterface
}

// NewBackend dials the agent. Addr is required.
func NewBackend(cfg Config) (*Backend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("datadog: Addr is required")
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	c, err := statsd.New(cfg.Addr, statsd.WithNamespace(ns), statsd.WithTags(cfg.GlobalTags))
	if err != nil {
		return nil, fmt.Errorf("datadog: create client: %w", err)
	}
	return &Backend{client: c}, nil
}

// IncCounter sends a Count. Fractional deltas are truncated.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	_ = b.client.Count(metricName(name), int64(delta), labelsToTags(labels), 1)
}

// ObserveHistogram sends stage durations as distributions so percentiles
// aggregate across hosts; other values go out as histograms.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if b.client == nil {
		return
	}
	tags := labelsToTags(labels)
	if name == metrics.StageDuration {
		_ = b.client.Distribution(metricName(name), value, tags, 1)
		return
	}
	_ = b.client.Histogram(metricName(name), value, tags, 1)
}

// Flush closes the client, flushing buffered datagrams. Call once at shutdown.
func (b *Backend) Flush() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

func metricName(name string) string {
	if n, ok := names[name]; ok {
		return n
	}
	return name
}

// labelsToTags converts labels into sorted "key:value" tags. The job label
// is renamed etl_job since "job" is reserved by some agent integrations.
func labelsToTags(lbls metrics.Labels) []string {
	if len(lbls) == 0 {
		return nil
	}
	out := make([]string, 0, len(lbls))
	for k, v := range lbls {
		if k == "job" {
			k = "etl_job"
		}
		out = append(out, k+":"+v)
	}
	sort.Strings(out)
	return out
}
