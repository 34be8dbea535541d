package fubon

import (
	"strconv"
	"strings"
)

// NormalizeName strips all whitespace from a branch display name, including
// the full-width space the site pads names with. Normalized names are the
// lookup key into the branch identity map.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.NewReplacer(" ", "", "　", "", "\t", "").Replace(name)
}

// cleanInt parses a site-formatted volume: thousands separators and a
// leading "+" are stripped, the sign of negative values is preserved, and
// anything unparseable coerces to 0.
func cleanInt(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return 0
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// isAggregateRow reports whether a branch-name cell belongs to a summary or
// residual header row rather than a data row.
func isAggregateRow(name string) bool {
	for _, marker := range []string{"合計", "平均", markerBuyers, markerSellers} {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}
