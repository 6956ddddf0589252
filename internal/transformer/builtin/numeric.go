package builtin

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	errNotNumeric  = errors.New("not numeric")
	errNotIntegral = errors.New("not an integral value")
)

// parseIntegral parses s as an int64. Integral decimal renderings such as
// "123.0" or "1e3" are accepted because re-exported nullable integer columns
// come back in that form; fractional values are rejected.
func parseIntegral(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumeric
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, errNotIntegral
	}
	return int64(f), nil
}

// parseDecimal parses a currency or weight value. Empty means NULL. A comma
// is read as the decimal separator when the value has no dot.
func parseDecimal(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errNotNumeric
	}
	return &f, nil
}
