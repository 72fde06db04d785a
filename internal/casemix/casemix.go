// Package casemix loads the case-mix index workbook and joins it to reports
// by hospital and year.
package casemix

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"hadr/internal/pcl"
	"hadr/internal/table"
)

// Column is the name of the joined case-mix column.
const Column = "case_mix_index"

// Identifier columns of the workbook.
const (
	ColumnCounty   = "county"
	ColumnOSHPDID  = "oshpd_id"
	ColumnHospital = "hospital"
)

var periodRe = regexp.MustCompile(`^(FY|CY)(\d{4})$`)

// Entry is one hospital-period value of the melted workbook.
type Entry struct {
	County       string
	OSHPDID      string
	Hospital     string
	PeriodType   string
	PeriodYear   int
	CaseMixIndex *float64
}

// RowReader reads raw rows of a sheet.
type RowReader interface {
	ReadRows(path, sheet string, skip, limit int) ([][]pcl.Cell, error)
}

// Load reads sheet and melts every FYyyyy and CYyyyy column into entries,
// keeping periods from minYear on.
func Load(r RowReader, path, sheet string, minYear int) ([]Entry, error) {
	rows, err := r.ReadRows(path, sheet, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("read case mix: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("case mix sheet %q of %s is empty", sheet, path)
	}
	return Melt(rows, minYear)
}

// Melt converts a wide case-mix sheet, header first, into long entries.
func Melt(rows [][]pcl.Cell, minYear int) ([]Entry, error) {
	type period struct {
		col  int
		kind string
		year int
	}
	ids := map[string]int{}
	var periods []period
	for i, c := range rows[0] {
		name := strings.TrimSpace(c.Text())
		switch name {
		case ColumnCounty, ColumnOSHPDID, ColumnHospital:
			ids[name] = i
			continue
		}
		if m := periodRe.FindStringSubmatch(name); m != nil {
			y, _ := strconv.Atoi(m[2])
			periods = append(periods, period{col: i, kind: m[1], year: y})
		}
	}
	if _, ok := ids[ColumnOSHPDID]; !ok {
		return nil, fmt.Errorf("case mix sheet has no %q column", ColumnOSHPDID)
	}

	at := func(row []pcl.Cell, name string) pcl.Cell {
		i, ok := ids[name]
		if !ok || i >= len(row) {
			return pcl.EmptyCell()
		}
		return row[i]
	}

	var out []Entry
	for _, row := range rows[1:] {
		id := NormalizeID(at(row, ColumnOSHPDID))
		if id == "" {
			continue
		}
		for _, p := range periods {
			if p.year < minYear {
				continue
			}
			e := Entry{
				County:     at(row, ColumnCounty).Text(),
				OSHPDID:    id,
				Hospital:   at(row, ColumnHospital).Text(),
				PeriodType: p.kind,
				PeriodYear: p.year,
			}
			if p.col < len(row) {
				if v, ok := row[p.col].Float(); ok {
					e.CaseMixIndex = &v
				}
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// NormalizeID returns a hospital id as text, zero-padded to 6 characters so
// ids stored as numbers join with ids derived from facility numbers.
func NormalizeID(c pcl.Cell) string {
	s := strings.TrimSpace(c.Text())
	if s == "" {
		return ""
	}
	if n := len(s); n < 6 {
		s = strings.Repeat("0", 6-n) + s
	}
	return s
}

// Index serves (oshpd_id, year) lookups over loaded entries.
type Index struct {
	prefer []string
	values map[key]map[string]float64
}

type key struct {
	id   string
	year int
}

// NewIndex indexes entries. When a hospital has values for several period
// types in one year, the first type in prefer that has a value wins.
func NewIndex(entries []Entry, prefer ...string) *Index {
	if len(prefer) == 0 {
		prefer = []string{"FY", "CY"}
	}
	idx := &Index{prefer: prefer, values: map[key]map[string]float64{}}
	for _, e := range entries {
		if e.CaseMixIndex == nil {
			continue
		}
		k := key{e.OSHPDID, e.PeriodYear}
		if idx.values[k] == nil {
			idx.values[k] = map[string]float64{}
		}
		if _, dup := idx.values[k][e.PeriodType]; !dup {
			idx.values[k][e.PeriodType] = *e.CaseMixIndex
		}
	}
	return idx
}

// Lookup returns the case-mix index of a hospital-year rounded to 2 decimals.
func (x *Index) Lookup(oshpdID string, year int) (float64, bool) {
	byType, ok := x.values[key{oshpdID, year}]
	if !ok {
		return 0, false
	}
	for _, p := range x.prefer {
		if v, ok := byType[p]; ok {
			return round2(v), true
		}
	}
	return 0, false
}

// Len returns the number of indexed hospital-years.
func (x *Index) Len() int { return len(x.values) }

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Join appends the case-mix column to t, matching the oshpd id and year
// columns. Unmatched rows get an empty cell. It returns the matched count.
func (x *Index) Join(t *table.Table, idColumn, yearColumn string) (int, error) {
	idx, err := t.Indexes([]string{idColumn, yearColumn})
	if err != nil {
		return 0, fmt.Errorf("case mix join: %w", err)
	}
	matched := 0
	t.AddColumn(Column, func(row []pcl.Cell) pcl.Cell {
		year, ok := row[idx[1]].Float()
		if !ok {
			return pcl.EmptyCell()
		}
		v, ok := x.Lookup(NormalizeID(row[idx[0]]), int(year))
		if !ok {
			return pcl.EmptyCell()
		}
		matched++
		return pcl.NumberCell(v)
	})
	return matched, nil
}
