// Package builtin contains the batch transforms of the sales pipeline.
//
// A chunk flows through them in a fixed order:
//
//	Normalizer  -> typed rows plus the split sale-key segments
//	Reconcile   -> sale keys repaired against the store id
//	DeDup       -> first occurrence of each (sale key, product) kept
//
// Every transform is total over its batch: a row that cannot be converted
// fails the batch with a *SchemaError instead of being dropped or defaulted.
package builtin

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/sales"
)

// DefaultSyntheticColumns matches index columns added by a previous export
// ("Unnamed: 0") and headerless columns.
const DefaultSyntheticColumns = `^(Unnamed|$)`

var (
	errBadDate = errors.New("date does not match YYYYMMDD")
	errBadKey  = errors.New("sale key must hold exactly one '|'")
)

// required lists the source columns a sales chunk cannot do without.
var required = []string{
	sales.SrcSaleKey,
	sales.SrcStoreID,
	sales.SrcCustomerID,
	sales.SrcCustomerType,
	sales.SrcProductID,
	sales.SrcSaleDate,
}

// SplitSale is a normalized sale carrying the two transient segments of its
// sale key. The segments never reach the sink.
type SplitSale struct {
	sales.Sale
	StoreSegment  string
	CouponSegment string
}

// Normalizer turns raw sales chunks into typed rows.
type Normalizer struct {
	synthetic *regexp.Regexp
}

// NewNormalizer compiles the synthetic-column pattern. An empty pattern
// selects DefaultSyntheticColumns.
func NewNormalizer(pattern string) (*Normalizer, error) {
	if pattern == "" {
		pattern = DefaultSyntheticColumns
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("synthetic column pattern: %w", err)
	}
	return &Normalizer{synthetic: re}, nil
}

// KeptColumns returns the header positions that survive the synthetic-column
// drop, in header order.
func (n *Normalizer) KeptColumns(header []string) []int {
	keep := make([]int, 0, len(header))
	for i, h := range header {
		if n.synthetic.MatchString(h) {
			continue
		}
		keep = append(keep, i)
	}
	return keep
}

// columnPlan maps each known source column to its position in a raw row,
// or -1 when the header lacks it.
type columnPlan struct {
	saleKey, storeID, customerID, customerType, customerSex int
	productID, saleDate, gross, discount, net, weight       int
}

func (n *Normalizer) plan(header []string) (columnPlan, error) {
	idx := make(map[string]int, len(header))
	for _, i := range n.KeptColumns(header) {
		k := csvparser.CanonicalHeader(header[i])
		if _, dup := idx[k]; !dup {
			idx[k] = i
		}
	}
	for _, c := range required {
		if _, ok := idx[c]; !ok {
			return columnPlan{}, &SchemaError{Line: 1, Column: c, Err: ErrMissingColumn}
		}
	}
	pos := func(c string) int {
		if i, ok := idx[c]; ok {
			return i
		}
		return -1
	}
	return columnPlan{
		saleKey:      pos(sales.SrcSaleKey),
		storeID:      pos(sales.SrcStoreID),
		customerID:   pos(sales.SrcCustomerID),
		customerType: pos(sales.SrcCustomerType),
		customerSex:  pos(sales.SrcCustomerSex),
		productID:    pos(sales.SrcProductID),
		saleDate:     pos(sales.SrcSaleDate),
		gross:        pos(sales.SrcGross),
		discount:     pos(sales.SrcDiscount),
		net:          pos(sales.SrcNet),
		weight:       pos(sales.SrcWeightKg),
	}, nil
}

// Apply normalizes one chunk. Either every row converts or the chunk fails
// with a *SchemaError naming the first offending line.
func (n *Normalizer) Apply(ch csvparser.Chunk) ([]SplitSale, error) {
	p, err := n.plan(ch.Header)
	if err != nil {
		return nil, err
	}

	out := make([]SplitSale, 0, len(ch.Rows))
	for i, row := range ch.Rows {
		line := ch.Line(i)
		field := func(pos int) string {
			if pos < 0 || pos >= len(row) {
				return ""
			}
			return row[pos]
		}
		fail := func(col, val string, cause error) error {
			return &SchemaError{Line: line, Column: col, Value: val, Err: cause}
		}

		var s SplitSale
		s.Line = line
		s.StoreID = field(p.storeID)
		s.ProductID = field(p.productID)
		s.CustomerSex = field(p.customerSex)

		if v := field(p.customerID); v != "" {
			id, err := parseIntegral(v)
			if err != nil {
				return nil, fail(sales.SrcCustomerID, v, err)
			}
			s.CustomerID = id
		}

		s.CustomerType = field(p.customerType)
		if s.CustomerType == "" {
			s.CustomerType = sales.DefaultCustomerType
		}

		v := field(p.saleDate)
		d, err := parseSaleDate(v)
		if err != nil {
			return nil, fail(sales.SrcSaleDate, v, err)
		}
		s.SaleDate = d

		s.SaleKey = field(p.saleKey)
		store, coupon, ok := sales.SplitKey(s.SaleKey)
		if !ok {
			return nil, fail(sales.SrcSaleKey, s.SaleKey, errBadKey)
		}
		s.StoreSegment, s.CouponSegment = store, coupon

		for _, m := range []struct {
			pos int
			col string
			dst **float64
		}{
			{p.gross, sales.SrcGross, &s.Gross},
			{p.discount, sales.SrcDiscount, &s.Discount},
			{p.net, sales.SrcNet, &s.Net},
			{p.weight, sales.SrcWeightKg, &s.WeightKg},
		} {
			v := field(m.pos)
			f, err := parseDecimal(v)
			if err != nil {
				return nil, fail(m.col, v, err)
			}
			*m.dst = f
		}

		out = append(out, s)
	}
	return out, nil
}

// parseSaleDate parses the fixed 8-digit layout. Anything else, including an
// empty value, is rejected so no NULL date reaches the sink.
func parseSaleDate(s string) (time.Time, error) {
	if len(s) != len(sales.DateLayout) {
		return time.Time{}, errBadDate
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return time.Time{}, errBadDate
		}
	}
	t, err := time.Parse(sales.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", errBadDate, err)
	}
	return t, nil
}
