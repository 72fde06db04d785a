package pcl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Fixed identity columns. Positions 0 and 1 of every data sheet carry the
// facility number and the report period end date regardless of header content.
const (
	FacilityNumber      = "OSHPD_FACILITY_NUMBER"
	ReportPeriodEndDate = "REPORT_PERIOD_END_DATE"
	DisclosureCycle     = "DISCLOSURE_CYCLE"
)

// DupMarker separates a column identifier from its occurrence suffix.
const DupMarker = "__dup"

var (
	cidRe      = regexp.MustCompile(`^P([^_]+)_C([^_]+)_L([^_]+)$`)
	measureRe  = regexp.MustCompile(`^P(\d+(?:\.\d+)?)_C(\d+(?:\.\d+)?)_L(\d+)$`)
	fallbackRe = regexp.MustCompile(`^COL_\d{5,}$`)
)

// CID is a canonical column identifier: one report coordinate triple.
// The zero value is not a valid identifier.
type CID struct {
	Page string
	Col  string
	Line string
}

// String formats the identifier as P<page>_C<col>_L<line>.
func (c CID) String() string {
	return "P" + c.Page + "_C" + c.Col + "_L" + c.Line
}

// Pair returns the (page, column) grouping key of the identifier.
func (c CID) Pair() Pair {
	return Pair{Page: c.Page, Col: c.Col}
}

// ParseCID parses the P<page>_C<col>_L<line> grammar. Components may carry
// decimals or text but never the separator.
func ParseCID(s string) (CID, error) {
	m := cidRe.FindStringSubmatch(s)
	if m == nil {
		return CID{}, fmt.Errorf("not a column identifier: %q", s)
	}
	return CID{Page: m[1], Col: m[2], Line: m[3]}, nil
}

// IsFallback reports whether name is a positional COL_nnnnn identifier.
func IsFallback(name string) bool {
	return fallbackRe.MatchString(name)
}

// SplitDup separates a deduplicated identifier into its base and occurrence.
// Names without a suffix return occurrence 1.
func SplitDup(name string) (string, int) {
	i := strings.LastIndex(name, DupMarker)
	if i < 0 {
		return name, 1
	}
	n, err := strconv.Atoi(name[i+len(DupMarker):])
	if err != nil || n < 2 {
		return name, 1
	}
	return name[:i], n
}

// Pair is a governed (page, column) combination, independent of line.
type Pair struct {
	Page string
	Col  string
}

// String formats the pair as P<page>_C<col>.
func (p Pair) String() string {
	return "P" + p.Page + "_C" + p.Col
}

// Measure is a measure column name parsed for reshaping. Line is always an
// integer revenue center; page and column keep any decimal point.
type Measure struct {
	Name string
	Page string
	Col  string
	Line int
}

// Pair returns the P<page>_C<col> grouping key.
func (m Measure) Pair() string {
	return Pair{Page: m.Page, Col: m.Col}.String()
}

// ParseMeasure parses a numeric P_C_L identifier with an integer line.
func ParseMeasure(name string) (Measure, bool) {
	m := measureRe.FindStringSubmatch(name)
	if m == nil {
		return Measure{}, false
	}
	line, err := strconv.Atoi(m[3])
	if err != nil {
		return Measure{}, false
	}
	return Measure{Name: name, Page: m[1], Col: m[2], Line: line}, true
}

// IsMeasure reports whether name is a bare numeric P_C_L identifier.
func IsMeasure(name string) bool {
	return measureRe.MatchString(name)
}
