package parquet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
)

// dateLayouts are tried in order when a date column arrives as text.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"20060102",
}

// InferSchema derives an Arrow schema from the first non-nil value of each
// column. Columns named in dateColumns are always Date32; columns with no
// value at all become nullable strings.
func InferSchema(columns []string, rows [][]any, dateColumns ...string) *arrow.Schema {
	dates := make(map[string]bool, len(dateColumns))
	for _, c := range dateColumns {
		dates[c] = true
	}
	fields := make([]arrow.Field, len(columns))
	for i, name := range columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.BinaryTypes.String, Nullable: true}
		if dates[name] {
			fields[i].Type = arrow.FixedWidthTypes.Date32
			continue
		}
		for _, row := range rows {
			if i >= len(row) || row[i] == nil {
				continue
			}
			fields[i].Type = typeOf(row[i])
			break
		}
	}
	return arrow.NewSchema(fields, nil)
}

func typeOf(v any) arrow.DataType {
	switch v.(type) {
	case int64, int32, int, int16:
		return arrow.PrimitiveTypes.Int64
	case float64, float32:
		return arrow.PrimitiveTypes.Float64
	case bool:
		return arrow.FixedWidthTypes.Boolean
	case time.Time:
		return arrow.FixedWidthTypes.Date32
	default:
		return arrow.BinaryTypes.String
	}
}

// ParseDate converts a driver value into a date. Strings are tried against
// the layouts the supported drivers produce.
func ParseDate(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return d, nil
			}
		}
		return time.Time{}, fmt.Errorf("parquet: unrecognized date %q", t)
	case []byte:
		return ParseDate(string(t))
	}
	return time.Time{}, fmt.Errorf("parquet: unsupported date value %T", v)
}

// appendValue appends v to the column builder b, converting between the
// numeric and textual forms the drivers return.
func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch bb := b.(type) {
	case *array.Int64Builder:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		bb.Append(n)
	case *array.Float64Builder:
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		bb.Append(f)
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return fmt.Errorf("parquet: %T is not a bool", v)
		}
		bb.Append(x)
	case *array.Date32Builder:
		d, err := ParseDate(v)
		if err != nil {
			return err
		}
		bb.Append(arrow.Date32FromTime(d))
	case *array.StringBuilder:
		bb.Append(toString(v))
	default:
		return fmt.Errorf("parquet: unsupported builder %T", b)
	}
	return nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("parquet: %v is not integral", n)
		}
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}
	return 0, fmt.Errorf("parquet: %T is not an integer", v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	}
	return 0, fmt.Errorf("parquet: %T is not a number", v)
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format("2006-01-02")
	}
	return fmt.Sprint(v)
}
