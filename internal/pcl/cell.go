package pcl

import (
	"math"
	"strconv"
	"strings"
)

// CellKind distinguishes the three native cell shapes a spreadsheet export
// produces. No other type inference is applied.
type CellKind uint8

const (
	KindEmpty CellKind = iota
	KindNumber
	KindString
)

// Cell is one raw spreadsheet cell. Raw keeps the source text so identifier
// cells such as facility numbers with leading zeros survive a round trip.
type Cell struct {
	Kind CellKind
	Num  float64
	Raw  string
}

// EmptyCell returns the absent cell.
func EmptyCell() Cell { return Cell{} }

// NumberCell returns a numeric cell whose raw text is the shortest decimal form of f.
func NumberCell(f float64) Cell {
	return Cell{Kind: KindNumber, Num: f, Raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

// StringCell returns a text cell. An empty string is the empty cell.
func StringCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{Kind: KindString, Raw: s}
}

// ParseCell classifies a raw value as read from a workbook or a columnar file.
// "" is empty, finite decimal text is a number, anything else is a string.
func ParseCell(raw string) Cell {
	if raw == "" {
		return Cell{}
	}
	trimmed := strings.TrimSpace(raw)
	if looksNumeric(trimmed) {
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Cell{Kind: KindNumber, Num: f, Raw: raw}
		}
	}
	return Cell{Kind: KindString, Raw: raw}
}

// IsEmpty reports whether the cell is absent.
func (c Cell) IsEmpty() bool { return c.Kind == KindEmpty }

// Text returns the cell as stored text; empty cells yield "".
func (c Cell) Text() string {
	if c.Kind == KindNumber && c.Raw == "" {
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	}
	return c.Raw
}

// Float returns the numeric value of the cell. Text cells are coerced after
// stripping thousands separators and dollar signs; anything else is not ok.
func (c Cell) Float() (float64, bool) {
	switch c.Kind {
	case KindNumber:
		return c.Num, true
	case KindString:
		s := strings.TrimSpace(c.Raw)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, "$", "")
		if !looksNumeric(s) {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// looksNumeric accepts plain decimal notation with optional sign and exponent.
// strconv.ParseFloat alone also accepts "inf", "nan", hex floats and
// underscores, none of which are numbers in a report export.
func looksNumeric(s string) bool {
	if s == "" {
		return false
	}
	digits := false
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch >= '0' && ch <= '9':
			digits = true
		case ch == '.' || ch == '+' || ch == '-' || ch == 'e' || ch == 'E':
		default:
			return false
		}
	}
	return digits
}
