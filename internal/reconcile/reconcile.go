// Package reconcile keeps one report per hospital and year when a hospital
// filed overlapping or repeated reports.
package reconcile

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"hadr/internal/audit"
	"hadr/internal/pcl"
	"hadr/internal/schema"
	"hadr/internal/table"
)

// Columns appended to the reconciled table.
const (
	ColumnYear      = "YEAR_END"
	ColumnDays      = "DAY_PER"
	ColumnBeginDate = "BEGIN_DATE"
	ColumnEndDate   = "END_DATE"
)

// Options names the identifier columns and the inclusive year window.
type Options struct {
	HospitalName string
	BeginDate    string
	EndDate      string
	From         int
	To           int
	Logger       zerolog.Logger
	Audit        *audit.Counters
}

// Record is the derived period of one input row.
type Record struct {
	Row   int
	Name  string
	Begin *time.Time
	End   *time.Time
	Year  *int
	Days  *int
}

// Derive computes the period fields of every row of t.
func Derive(t *table.Table, opts Options) ([]Record, error) {
	idx, err := t.Indexes([]string{opts.HospitalName, opts.BeginDate, opts.EndDate})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", schema.ErrMissingIdentifier, err)
	}
	nameIdx, beginIdx, endIdx := idx[0], idx[1], idx[2]

	badBegin, badEnd := 0, 0
	recs := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		rec := Record{Row: i, Name: row[nameIdx].Text()}
		if b, ok := ParseDate(row[beginIdx]); ok {
			rec.Begin = &b
		} else if !row[beginIdx].IsEmpty() {
			badBegin++
		}
		if e, ok := ParseDate(row[endIdx]); ok {
			rec.End = &e
			y := e.Year()
			rec.Year = &y
		} else if !row[endIdx].IsEmpty() {
			badEnd++
		}
		if rec.Begin != nil && rec.End != nil {
			d := days(*rec.Begin, *rec.End)
			rec.Days = &d
		}
		recs[i] = rec
	}
	if badBegin+badEnd > 0 {
		opts.Logger.Info().
			Int("begin", badBegin).
			Int("end", badEnd).
			Msg("unparsable report dates treated as missing")
	}
	opts.Audit.UnparsableDates(opts.BeginDate, badBegin)
	opts.Audit.UnparsableDates(opts.EndDate, badEnd)
	return recs, nil
}

// Reconcile restricts t to the year window and keeps the first row of each
// (hospital name, year) group after sorting by name ascending, year
// ascending, period length descending and end date descending. Missing
// period lengths and end dates sort last. The output carries the derived
// YEAR_END, DAY_PER, BEGIN_DATE and END_DATE columns.
func Reconcile(t *table.Table, opts Options) (*table.Table, error) {
	recs, err := Derive(t, opts)
	if err != nil {
		return nil, err
	}

	inWindow := recs[:0:0]
	for _, r := range recs {
		if r.Year != nil && *r.Year >= opts.From && *r.Year <= opts.To {
			inWindow = append(inWindow, r)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return less(inWindow[i], inWindow[j])
	})

	columns := append(append([]string(nil), t.Columns...), ColumnYear, ColumnDays, ColumnBeginDate, ColumnEndDate)
	out := table.New(columns)
	type groupKey struct {
		name string
		year int
	}
	kept := map[groupKey]bool{}
	for _, r := range inWindow {
		k := groupKey{r.Name, *r.Year}
		if kept[k] {
			continue
		}
		kept[k] = true
		row := make([]pcl.Cell, 0, len(columns))
		row = append(row, t.Rows[r.Row]...)
		row = append(row, pcl.NumberCell(float64(*r.Year)), intCell(r.Days), dateCell(r.Begin), dateCell(r.End))
		out.Rows = append(out.Rows, row)
	}

	opts.Logger.Info().
		Int("rows", len(recs)).
		Int("in_window", len(inWindow)).
		Int("kept", out.Len()).
		Int("from", opts.From).
		Int("to", opts.To).
		Msg("reporting periods reconciled")
	return out, nil
}

func less(a, b Record) bool {
	// Rows without a name sort after named rows.
	if (a.Name == "") != (b.Name == "") {
		return b.Name == ""
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	if *a.Year != *b.Year {
		return *a.Year < *b.Year
	}
	if c := descNil(a.Days, b.Days); c != 0 {
		return c < 0
	}
	var ae, be *int64
	if a.End != nil {
		v := a.End.Unix()
		ae = &v
	}
	if b.End != nil {
		v := b.End.Unix()
		be = &v
	}
	return descNil(ae, be) < 0
}

// descNil orders larger values first and nils last.
func descNil[T int | int64](a, b *T) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a > *b:
		return -1
	case *a < *b:
		return 1
	}
	return 0
}

func intCell(v *int) pcl.Cell {
	if v == nil {
		return pcl.EmptyCell()
	}
	return pcl.NumberCell(float64(*v))
}

func dateCell(t *time.Time) pcl.Cell {
	if t == nil {
		return pcl.EmptyCell()
	}
	return pcl.StringCell(t.Format("2006-01-02"))
}
