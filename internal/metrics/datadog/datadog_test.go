package datadog

import (
	"strings"
	"sync"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/google/go-cmp/cmp"

	"salesetl/internal/metrics"
)

// recorder captures the calls the backend makes on the statsd client.
type recorder struct {
	statsd.NoOpClient
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(kind, name string, tags []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, kind+" "+name+" "+strings.Join(tags, ","))
}

func (r *recorder) Count(name string, _ int64, tags []string, _ float64) error {
	r.add("count", name, tags)
	return nil
}

func (r *recorder) Distribution(name string, _ float64, tags []string, _ float64) error {
	r.add("distribution", name, tags)
	return nil
}

func (r *recorder) Histogram(name string, _ float64, tags []string, _ float64) error {
	r.add("histogram", name, tags)
	return nil
}

func TestBackendRoutesMetrics(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	b := &Backend{client: rec}

	b.IncCounter(metrics.StageTotal, 1, metrics.Labels{"job": "vendas", "stage": "sales", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 3, metrics.Labels{"kind": metrics.KindRead})
	b.ObserveHistogram(metrics.StageDuration, 0.25, metrics.Labels{"stage": "export"})
	b.ObserveHistogram("custom_seconds", 1, nil)

	want := []string{
		"count stage.runs etl_job:vendas,stage:sales,status:success",
		"count records kind:read",
		"distribution stage.duration stage:export",
		"histogram custom_seconds ",
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("calls (-want +got):\n%s", diff)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	got := labelsToTags(metrics.Labels{"stage": "sales", "job": "vendas", "status": "success"})
	want := []string{"etl_job:vendas", "stage:sales", "status:success"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
	if labelsToTags(nil) != nil {
		t.Fatal("nil labels should give nil tags")
	}
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("expected error for empty Addr")
	}

	// UDP needs no listener, so the client can be created offline.
	b, err := NewBackend(Config{Addr: "127.0.0.1:8125", GlobalTags: []string{"env:test"}})
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.BatchesTotal, 2, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	var b Backend
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.StageDuration, 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}
