package records

import (
	"math"
	"regexp"
	"strconv"
)

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// ParseMoney strips currency symbols, separators and spaces. ok is false when
// nothing parseable remains; clamped reports a negative value forced to 0.
func ParseMoney(raw string) (value float64, ok bool, clamped bool) {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, false, false
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false, false
	}
	if parsed < 0 {
		return 0, true, true
	}
	return parsed, true, false
}
