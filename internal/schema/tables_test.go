package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"salesetl/internal/config"
	"salesetl/internal/sales"
)

func TestTablesMatchRowLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		table Table
		want  []string
	}{
		{"sales", Sales("public", "vendas"), sales.SaleColumns},
		{"products", Products("public", "produtos"), sales.ProductColumns},
		{"customers", Customers("public", "clientes"), sales.CustomerColumns},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, tt.table.ColumnNames()); diff != "" {
			t.Errorf("%s columns (-want +got):\n%s", tt.name, diff)
		}
	}
}

func TestFQN(t *testing.T) {
	t.Parallel()

	if got := Sales("public", "vendas").FQN(); got != "public.vendas" {
		t.Fatalf("FQN = %q", got)
	}
	if got := Sales("", "vendas").FQN(); got != "vendas" {
		t.Fatalf("FQN = %q", got)
	}
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	p := config.Pipeline{}
	p.ApplyDefaults()
	var names []string
	for _, tb := range FromConfig(p.Storage.DB) {
		names = append(names, tb.FQN())
	}
	want := []string{"public.produtos", "public.vendas", "public.clientes"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("tables (-want +got):\n%s", diff)
	}
}
