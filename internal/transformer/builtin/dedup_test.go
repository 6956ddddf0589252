package builtin

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"salesetl/internal/sales"
)

func sale(key, product string, net float64) sales.Sale {
	return sales.Sale{SaleKey: key, ProductID: product, Net: &net}
}

func nets(in []sales.Sale) []float64 {
	out := make([]float64, len(in))
	for i, s := range in {
		out[i] = *s.Net
	}
	return out
}

func TestDeDup_KeepsFirst(t *testing.T) {
	t.Parallel()

	in := []sales.Sale{
		sale("01|C1", "P1", 10),
		sale("01|C1", "P1", 99), // same key, different amount
		sale("01|C1", "P2", 20),
		sale("01|C2", "P1", 30),
		sale("01|C1", "P2", 21),
	}
	got := DeDup{}.Apply(in)
	if diff := cmp.Diff([]float64{10, 20, 30}, nets(got)); diff != "" {
		t.Fatalf("survivors (-want +got):\n%s", diff)
	}
}

func TestDeDup_Idempotent(t *testing.T) {
	t.Parallel()

	in := []sales.Sale{
		sale("a|1", "x", 1), sale("a|1", "x", 2), sale("b|1", "x", 3), sale("b|1", "y", 4), sale("b|1", "x", 5),
	}
	once := DeDup{}.Apply(in)
	twice := DeDup{}.Apply(once)
	if diff := cmp.Diff(nets(once), nets(twice)); diff != "" {
		t.Fatalf("second pass changed the batch (-once +twice):\n%s", diff)
	}
}

func TestDeDup_HashCollisionsDoNotMerge(t *testing.T) {
	t.Parallel()

	d := DeDup{Hash: func([]byte) uint64 { return 7 }}
	got := d.Apply([]sales.Sale{sale("a|1", "x", 1), sale("b|2", "y", 2), sale("a|1", "x", 3)})
	if diff := cmp.Diff([]float64{1, 2}, nets(got)); diff != "" {
		t.Fatalf("survivors (-want +got):\n%s", diff)
	}
}

func TestDeDup_SeparatorAmbiguity(t *testing.T) {
	t.Parallel()

	// ("a|1", "x") and ("a|1x", "") would collide under naive concatenation.
	got := DeDup{}.Apply([]sales.Sale{sale("a|1", "x", 1), sale("a|1x", "", 2)})
	if len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
}

func TestDeDup_Empty(t *testing.T) {
	t.Parallel()

	if got := (DeDup{}).Apply(nil); len(got) != 0 {
		t.Fatalf("got %d rows", len(got))
	}
}
