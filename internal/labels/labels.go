// Package labels resolves column identifiers to readable label suffixes
// using the curated label workbook.
package labels

import (
	"fmt"
	"regexp"
	"strings"

	"hadr/internal/pcl"
)

// Universe names one of the two disjoint label maps.
type Universe string

const (
	FinancialUtilization Universe = "financial_utilization"
	CostAllocation       Universe = "cost_allocation"
)

// Universes lists every label universe in a stable order.
var Universes = []Universe{FinancialUtilization, CostAllocation}

// Default names of the label workbook.
const (
	DefaultSheet  = "HADR"
	DefaultMarker = "Cost Alloc"

	ColumnPCL         = "PCL"
	ColumnDescription = "Data File Description"
	ColumnWorksheet   = "Worksheet 1 / 2"
	ColumnPage        = "Page"
	ColumnCol         = "Col"
	ColumnLine        = "Line"
)

// MaxLabelLen is the maximum label length in characters.
const MaxLabelLen = 120

// Row is one entry of the label source table.
type Row struct {
	CID         string
	Description string
	Category    string
	// HasCategory is false when the discriminator cell is empty or absent.
	HasCategory bool
}

// RowReader reads raw rows of a sheet.
type RowReader interface {
	ReadRows(path, sheet string, skip, limit int) ([][]pcl.Cell, error)
}

// Load reads the label sheet. When Page, Col and Line columns are present
// the identifier is derived from them; otherwise the PCL column is used.
func Load(r RowReader, path, sheet string) ([]Row, error) {
	rows, err := r.ReadRows(path, sheet, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("label sheet %q of %s is empty", sheet, path)
	}
	return FromCells(rows)
}

// FromCells parses a label table whose first row holds the column names.
func FromCells(rows [][]pcl.Cell) ([]Row, error) {
	idx := map[string]int{}
	for i, c := range rows[0] {
		name := strings.TrimSpace(c.Text())
		if _, dup := idx[name]; !dup && name != "" {
			idx[name] = i
		}
	}
	desc, ok := idx[ColumnDescription]
	if !ok {
		return nil, fmt.Errorf("label sheet has no %q column", ColumnDescription)
	}
	pclCol, hasPCL := idx[ColumnPCL]
	page, hasPage := idx[ColumnPage]
	col, hasCol := idx[ColumnCol]
	line, hasLine := idx[ColumnLine]
	numeric := hasPage && hasCol && hasLine
	if !numeric && !hasPCL {
		return nil, fmt.Errorf("label sheet has neither %q nor %q/%q/%q columns", ColumnPCL, ColumnPage, ColumnCol, ColumnLine)
	}
	ws, hasWS := idx[ColumnWorksheet]

	at := func(row []pcl.Cell, i int) pcl.Cell {
		if i < len(row) {
			return row[i]
		}
		return pcl.EmptyCell()
	}

	out := make([]Row, 0, len(rows)-1)
	for _, row := range rows[1:] {
		var lr Row
		if numeric {
			lr.CID = cidFromCells(at(row, page), at(row, col), at(row, line))
		}
		if lr.CID == "" && hasPCL {
			if c := at(row, pclCol); c.Kind == pcl.KindString {
				lr.CID = c.Raw
			}
		}
		lr.Description = at(row, desc).Text()
		if hasWS {
			if c := at(row, ws); !c.IsEmpty() {
				lr.Category = strings.TrimSpace(c.Text())
				lr.HasCategory = true
			}
		}
		out = append(out, lr)
	}
	return out, nil
}

func cidFromCells(p, c, l pcl.Cell) string {
	if p.IsEmpty() || c.IsEmpty() || l.IsEmpty() {
		return ""
	}
	return pcl.CID{Page: pcl.Token(p), Col: pcl.Token(c), Line: pcl.Token(l)}.String()
}

// Maps holds one label map per universe.
type Maps map[Universe]map[string]string

// Split partitions rows into the two universes. A row with no category is
// financial/utilization, a row whose category equals marker is cost
// allocation, and any other row is dropped. Only well-formed identifiers with
// a non-empty description are kept; later rows overwrite earlier ones.
func Split(rows []Row, marker string) Maps {
	m := Maps{
		FinancialUtilization: map[string]string{},
		CostAllocation:       map[string]string{},
	}
	for _, r := range rows {
		var u Universe
		switch {
		case !r.HasCategory:
			u = FinancialUtilization
		case r.Category == marker:
			u = CostAllocation
		default:
			continue
		}
		if !pcl.IsMeasure(r.CID) || strings.TrimSpace(r.Description) == "" {
			continue
		}
		label := Sanitize(r.Description)
		if label == "" {
			continue
		}
		m[u][r.CID] = label
	}
	return m
}

var (
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	underscore = regexp.MustCompile(`_+`)
)

// Sanitize turns a free-text description into an identifier-safe label.
//
//	"Total Patient Days (incl. nursery)" -> "Total_Patient_Days_incl_nursery"
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = nonWord.ReplaceAllString(s, "_")
	s = underscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if r := []rune(s); len(r) > MaxLabelLen {
		s = string(r[:MaxLabelLen])
	}
	return s
}

// Apply appends __<label> to every column that is a bare identifier present
// in labels. All other columns are returned unchanged.
func Apply(columns []string, labels map[string]string) []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c
		if !pcl.IsMeasure(c) {
			continue
		}
		if l, ok := labels[c]; ok {
			out[i] = c + "__" + l
		}
	}
	return out
}
