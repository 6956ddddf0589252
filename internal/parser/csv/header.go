package csv

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// StripHeaderBOM drops a UTF-8 BOM from the first header cell in place.
// Spreadsheet exports of the retail extracts commonly carry one.
func StripHeaderBOM(headers []string) []string {
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	}
	return headers
}

// CanonicalHeader folds a header cell to the form used for lookups: trimmed,
// accents removed, upper-cased, inner spaces replaced by underscores.
//
//	" Código Produto " -> "CODIGO_PRODUTO"
func CanonicalHeader(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, utf8BOM))

	// Decompose, drop nonspacing marks, recompose.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ReplaceAll(strings.ToUpper(folded), " ", "_")
}

// HeaderIndex maps canonical header names to their column positions. When a
// name repeats, the first position wins.
func HeaderIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		k := CanonicalHeader(h)
		if _, dup := idx[k]; !dup {
			idx[k] = i
		}
	}
	return idx
}
