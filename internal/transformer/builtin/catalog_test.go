package builtin

import (
	"encoding/json"
	"errors"
	"testing"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/sales"
)

func TestProducts(t *testing.T) {
	t.Parallel()

	ch := csvparser.Chunk{
		Header: []string{sales.SrcProdID, sales.SrcProdCategoryID, sales.SrcProdCategoryPath, sales.SrcProdDescription, sales.SrcProdUnit, sales.SrcProdBarcode},
		Rows: [][]string{
			{"P1", "10", "[1, 10]", "Arroz", "kg", "7891000100103"},
			{"P2", "11", "[1, 11]", "Feijao", "un", "SEM GTIN"},
			{"P3", "12", "[1, 12]", "Sal", "Kg", ""},
			{"P4", "12", "[1, 12]", "Acucar", "KG", "7891000100110.0"},
		},
		FirstLine: 2,
	}
	got, err := Products(ch)
	if err != nil {
		t.Fatalf("Products: %v", err)
	}
	if got[0].Unit != "KG" || got[1].Unit != "UN" || got[2].Unit != "KG" {
		t.Fatalf("units not upper-cased: %q %q %q", got[0].Unit, got[1].Unit, got[2].Unit)
	}
	if got[0].Barcode == nil || *got[0].Barcode != 7891000100103 {
		t.Fatalf("barcode = %v", got[0].Barcode)
	}
	if got[1].Barcode != nil || got[2].Barcode != nil {
		t.Fatal("non-numeric or empty barcode must be NULL")
	}
	if got[3].Barcode == nil || *got[3].Barcode != 7891000100110 {
		t.Fatalf("integral decimal barcode = %v", got[3].Barcode)
	}
}

func TestProducts_MissingID(t *testing.T) {
	t.Parallel()

	_, err := Products(csvparser.Chunk{Header: []string{"DES_PRODUTO"}})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("want ErrMissingColumn, got %v", err)
	}
}

func TestCustomer(t *testing.T) {
	t.Parallel()

	c, err := Customer(map[string]any{
		sales.SrcCustID:        json.Number("42"),
		sales.SrcCustType:      "F",
		sales.SrcCustName:      " Ana ",
		sales.SrcCustSex:       "F",
		sales.SrcCustBirthDate: "1990-05-17",
	}, 0)
	if err != nil {
		t.Fatalf("Customer: %v", err)
	}
	if c.CustomerID != 42 || c.Name != "Ana" || c.BirthDate == nil || c.BirthDate.Year() != 1990 {
		t.Fatalf("got %+v", c)
	}

	c, err = Customer(map[string]any{sales.SrcCustID: float64(7)}, 1)
	if err != nil || c.CustomerID != 7 || c.BirthDate != nil {
		t.Fatalf("got %+v, %v", c, err)
	}
}

func TestCustomer_Errors(t *testing.T) {
	t.Parallel()

	tests := []map[string]any{
		{sales.SrcCustID: "abc"},
		{sales.SrcCustID: json.Number("1"), sales.SrcCustBirthDate: "17/05/1990"},
		{sales.SrcCustID: true},
	}
	for i, rec := range tests {
		_, err := Customer(rec, i)
		var se *SchemaError
		if !errors.As(err, &se) || se.Line != i {
			t.Errorf("case %d: want *SchemaError at %d, got %v", i, i, err)
		}
	}
}
