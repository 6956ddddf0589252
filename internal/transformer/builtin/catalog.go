package builtin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/sales"
)

var errBadBirthDate = errors.New("date does not match YYYY-MM-DD")

// Products converts a catalog chunk. Units are upper-cased. A barcode that is
// missing or not an integral number becomes NULL instead of failing the
// batch; only a missing product id column is fatal.
func Products(ch csvparser.Chunk) ([]sales.Product, error) {
	idx := csvparser.HeaderIndex(ch.Header)
	if _, ok := idx[sales.SrcProdID]; !ok {
		return nil, &SchemaError{Line: 1, Column: sales.SrcProdID, Err: ErrMissingColumn}
	}
	get := func(row []string, col string) string {
		if i, ok := idx[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	out := make([]sales.Product, 0, len(ch.Rows))
	for _, row := range ch.Rows {
		p := sales.Product{
			ProductID:    get(row, sales.SrcProdID),
			CategoryID:   get(row, sales.SrcProdCategoryID),
			CategoryPath: get(row, sales.SrcProdCategoryPath),
			Description:  get(row, sales.SrcProdDescription),
			Unit:         strings.ToUpper(get(row, sales.SrcProdUnit)),
		}
		if v := get(row, sales.SrcProdBarcode); v != "" {
			if n, err := parseIntegral(v); err == nil {
				p.Barcode = &n
			}
		}
		out = append(out, p)
	}
	return out, nil
}

// Customer converts one decoded customer document. index is the document's
// position in the source and is reported as the line of a *SchemaError.
func Customer(rec map[string]any, index int) (sales.Customer, error) {
	fail := func(col string, v any, cause error) error {
		return &SchemaError{Line: index, Column: col, Value: fmt.Sprint(v), Err: cause}
	}

	var c sales.Customer
	id, err := jsonInt(rec[sales.SrcCustID])
	if err != nil {
		return c, fail(sales.SrcCustID, rec[sales.SrcCustID], err)
	}
	c.CustomerID = id
	c.CustomerType = jsonString(rec[sales.SrcCustType])
	c.Name = jsonString(rec[sales.SrcCustName])
	c.Sex = jsonString(rec[sales.SrcCustSex])

	if s := jsonString(rec[sales.SrcCustBirthDate]); s != "" {
		t, err := time.Parse(sales.BirthDateLayout, s)
		if err != nil {
			return c, fail(sales.SrcCustBirthDate, s, errBadBirthDate)
		}
		c.BirthDate = &t
	}
	return c, nil
}

// jsonInt accepts json.Number, float64 (decoders without UseNumber) and
// numeric strings. A missing value is 0.
func jsonInt(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		return parseIntegral(t.String())
	case float64:
		return parseIntegral(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		if t == "" {
			return 0, nil
		}
		return parseIntegral(strings.TrimSpace(t))
	default:
		return 0, errNotNumeric
	}
}

func jsonString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return fmt.Sprint(t)
	}
}
