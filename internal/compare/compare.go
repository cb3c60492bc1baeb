// Package compare implements the canonicalizing value comparison used to
// derive agreement between predicted and provided values. Both sides are
// canonicalized before equality, so "85%" matches "0.85", "" matches "0",
// and casing never matters.
package compare

import (
	"strconv"
	"strings"
)

// Blank is the canonical marker for values with no usable content.
const Blank = "Blank"

// noReporting is treated as an explicit "no value" marker in source data.
const noReporting = "no reporting"

// Canonicalize maps a raw value to its canonical form:
//   - leading/trailing whitespace is ignored
//   - a case-insensitive "No Reporting" marker canonicalizes like an empty value
//   - empty or missing values canonicalize to Blank
//   - numeric-looking values (including a trailing %, read as a fraction)
//     canonicalize to a normalized numeric string; numeric zero is Blank
//   - anything else canonicalizes to its lower-cased text
func Canonicalize(value string) string {
	s := strings.TrimSpace(value)

	if strings.EqualFold(s, noReporting) {
		s = ""
	}
	if s == "" {
		return Blank
	}

	if n, ok := parseNumeric(s); ok {
		if n == 0 {
			return Blank
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}

	return strings.ToLower(s)
}

// Values reports whether two raw values are equal after canonicalization.
// The comparison is symmetric: Values(a, b) == Values(b, a).
func Values(a, b string) bool {
	return Canonicalize(a) == Canonicalize(b)
}

// parseNumeric interprets s as a number, accepting a trailing percent sign
// (converted to a fraction) and thousands separators.
func parseNumeric(s string) (float64, bool) {
	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	s = strings.ReplaceAll(s, ",", "")

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if percent {
		n /= 100
	}
	return n, true
}
