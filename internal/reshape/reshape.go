// Package reshape selects the governed columns of a longitudinal table and
// moves measures between wide and long form.
package reshape

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"hadr/internal/pcl"
	"hadr/internal/schema"
	"hadr/internal/table"
)

// Sentinel errors of the selection stage.
var (
	ErrMissingIdentifier = schema.ErrMissingIdentifier
	ErrNoMatch           = schema.ErrNoMatch
)

// Reduced is a table restricted to identifiers and governed measures.
type Reduced struct {
	Table       *table.Table
	Identifiers []string
	Measures    []string
}

// Select projects t onto the governed selection.
func Select(t *table.Table, sel schema.Selection) (*Reduced, error) {
	s := schema.Describe(t.Columns)
	picked, err := s.Select(sel)
	if err != nil {
		return nil, err
	}
	proj, err := t.Project(picked.Columns())
	if err != nil {
		return nil, err
	}
	return &Reduced{
		Table:       proj,
		Identifiers: picked.Identifiers,
		Measures:    picked.Measures,
	}, nil
}

// UnpivotRow is one (identifiers, measure, value) triple.
type UnpivotRow struct {
	IDs     []pcl.Cell
	Measure string
	Value   pcl.Cell
}

// Unpivoter turns measure columns into rows. Rows whose value is empty are
// not returned.
type Unpivoter interface {
	Unpivot(ctx context.Context, t *table.Table, ids, measures []string) ([]UnpivotRow, error)
}

// MemoryUnpivoter unpivots in process.
type MemoryUnpivoter struct{}

func (MemoryUnpivoter) Unpivot(ctx context.Context, t *table.Table, ids, measures []string) ([]UnpivotRow, error) {
	idIdx, err := t.Indexes(ids)
	if err != nil {
		return nil, fmt.Errorf("unpivot: %w", err)
	}
	mIdx, err := t.Indexes(measures)
	if err != nil {
		return nil, fmt.Errorf("unpivot: %w", err)
	}
	var out []UnpivotRow
	for r, row := range t.Rows {
		if r%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		var key []pcl.Cell
		for j, mi := range mIdx {
			v := row[mi]
			if v.IsEmpty() {
				continue
			}
			if key == nil {
				key = make([]pcl.Cell, len(idIdx))
				for k, ii := range idIdx {
					key[k] = row[ii]
				}
			}
			out = append(out, UnpivotRow{IDs: key, Measure: measures[j], Value: v})
		}
	}
	return out, nil
}

// LongRow is one unpivoted measure with its parsed coordinates.
type LongRow struct {
	IDs   []pcl.Cell
	PCL   string
	Page  string
	Col   string
	Line  int
	Pair  string
	Value pcl.Cell
}

// Long is the long form of a reduced table.
type Long struct {
	IDColumns []string
	Rows      []LongRow
}

// Melt unpivots measures of t through u and parses each measure name.
func Melt(ctx context.Context, u Unpivoter, t *table.Table, ids, measures []string) (*Long, error) {
	for _, m := range measures {
		if _, ok := pcl.ParseMeasure(m); !ok {
			return nil, fmt.Errorf("melt: %q is not a page/column/line identifier", m)
		}
	}
	rows, err := u.Unpivot(ctx, t, ids, measures)
	if err != nil {
		return nil, err
	}
	long := &Long{IDColumns: append([]string(nil), ids...), Rows: make([]LongRow, 0, len(rows))}
	for _, r := range rows {
		m, ok := pcl.ParseMeasure(r.Measure)
		if !ok {
			return nil, fmt.Errorf("melt: unexpected measure %q", r.Measure)
		}
		long.Rows = append(long.Rows, LongRow{
			IDs:   r.IDs,
			PCL:   r.Measure,
			Page:  m.Page,
			Col:   m.Col,
			Line:  m.Line,
			Pair:  m.Pair(),
			Value: r.Value,
		})
	}
	return long, nil
}

// WideRow is one (identifiers, revenue center) row of the re-pivoted table.
// Values are keyed by pair; a nil value is missing or not numeric.
type WideRow struct {
	Index         []pcl.Cell
	RevenueCenter int
	Values        map[string]*float64
}

// Value returns the value of pair, or nil.
func (w WideRow) Value(pair string) *float64 {
	return w.Values[pair]
}

// Wide is the long table pivoted back on pair against revenue center.
type Wide struct {
	Index []string
	Pairs []string
	Rows  []WideRow
}

// Pivot groups long rows by the index columns and line, spreading pairs into
// columns. The first numeric value seen for a cell wins. Rows keep
// first-seen order.
func Pivot(long *Long, index []string) (*Wide, error) {
	pos := make([]int, len(index))
	for i, name := range index {
		pos[i] = -1
		for j, c := range long.IDColumns {
			if c == name {
				pos[i] = j
				break
			}
		}
		if pos[i] < 0 {
			return nil, fmt.Errorf("pivot: index column %q not in long table", name)
		}
	}

	w := &Wide{Index: append([]string(nil), index...)}
	rowOf := map[string]int{}
	pairSeen := map[string]bool{}
	for _, lr := range long.Rows {
		key := make([]pcl.Cell, len(pos))
		var sb strings.Builder
		for i, p := range pos {
			key[i] = lr.IDs[p]
			sb.WriteString(key[i].Text())
			sb.WriteByte(0)
		}
		fmt.Fprintf(&sb, "%d", lr.Line)

		ri, ok := rowOf[sb.String()]
		if !ok {
			ri = len(w.Rows)
			rowOf[sb.String()] = ri
			w.Rows = append(w.Rows, WideRow{Index: key, RevenueCenter: lr.Line, Values: map[string]*float64{}})
		}
		if !pairSeen[lr.Pair] {
			pairSeen[lr.Pair] = true
			w.Pairs = append(w.Pairs, lr.Pair)
		}
		if prev, set := w.Rows[ri].Values[lr.Pair]; set && prev != nil {
			continue
		}
		var v *float64
		if f, ok := lr.Value.Float(); ok {
			v = &f
		}
		w.Rows[ri].Values[lr.Pair] = v
	}
	sort.Strings(w.Pairs)
	return w, nil
}
