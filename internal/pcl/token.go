package pcl

import (
	"math"
	"strconv"
	"strings"
)

// tokenPrecision is the fixed-point width used before trailing zeros are
// stripped from a fractional coordinate.
const tokenPrecision = 10

// Token normalizes one header cell into a coordinate token.
//
//	4, 4.0, "4"   -> "4"
//	4.1, "4.10"   -> "4.1"
//	" Sched A "   -> "Sched A"
//	empty         -> ""
//
// It never fails: text that does not parse as a finite number is returned trimmed.
func Token(c Cell) string {
	switch c.Kind {
	case KindEmpty:
		return ""
	case KindNumber:
		return formatNumber(c.Num)
	}
	s := strings.TrimSpace(c.Raw)
	if looksNumeric(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return formatNumber(f)
		}
	}
	return s
}

func formatNumber(f float64) string {
	if f == math.Trunc(f) {
		if f == 0 {
			return "0"
		}
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	s := strconv.FormatFloat(f, 'f', tokenPrecision, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
