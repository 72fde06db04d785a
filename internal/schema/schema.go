// Package schema describes the column layout of a report table once, so
// selection and labeling work on typed field descriptors instead of
// matching column names ad hoc.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"hadr/internal/pcl"
)

var (
	// ErrMissingIdentifier is returned when a required identifier column is absent.
	ErrMissingIdentifier = errors.New("missing required identifier column")
	// ErrNoMatch is returned when no measure column matches a governed pair.
	ErrNoMatch = errors.New("no column matched the governed pairs")
)

// Kind classifies a column name.
type Kind uint8

const (
	KindDerived Kind = iota
	KindCycle
	KindIdentity
	KindMeasure
	KindDuplicate
	KindFallback
	KindLabeled
)

func (k Kind) String() string {
	switch k {
	case KindCycle:
		return "cycle"
	case KindIdentity:
		return "identity"
	case KindMeasure:
		return "measure"
	case KindDuplicate:
		return "duplicate"
	case KindFallback:
		return "fallback"
	case KindLabeled:
		return "labeled"
	}
	return "derived"
}

// Field is one column of a described table.
type Field struct {
	Name     string
	Position int
	Kind     Kind
	// CID is set for measure, duplicate and labeled fields.
	CID pcl.CID
	// Line is the integer revenue center of a measure field, or -1.
	Line int
}

// Schema is the ordered field list of a table.
type Schema struct {
	Fields []Field
	index  map[string]int
}

// Describe classifies every column name in order.
func Describe(names []string) Schema {
	s := Schema{Fields: make([]Field, len(names)), index: make(map[string]int, len(names))}
	for i, name := range names {
		s.Fields[i] = describe(name, i)
		if _, ok := s.index[name]; !ok {
			s.index[name] = i
		}
	}
	return s
}

func describe(name string, pos int) Field {
	f := Field{Name: name, Position: pos, Line: -1}
	switch {
	case name == pcl.DisclosureCycle:
		f.Kind = KindCycle
		return f
	case name == pcl.FacilityNumber || name == pcl.ReportPeriodEndDate:
		f.Kind = KindIdentity
		return f
	case pcl.IsFallback(name):
		f.Kind = KindFallback
		return f
	}
	if m, ok := pcl.ParseMeasure(name); ok {
		f.Kind = KindMeasure
		f.CID = pcl.CID{Page: m.Page, Col: m.Col, Line: strconv.Itoa(m.Line)}
		f.Line = m.Line
		return f
	}
	if base, n := pcl.SplitDup(name); n > 1 {
		if c, err := pcl.ParseCID(base); err == nil {
			f.Kind = KindDuplicate
			f.CID = c
			return f
		}
	}
	if i := strings.Index(name, "__"); i > 0 {
		if c, err := pcl.ParseCID(name[:i]); err == nil {
			f.Kind = KindLabeled
			f.CID = c
			return f
		}
	}
	// Identifiers with text components are still well-formed but cannot be
	// reshaped by line.
	if c, err := pcl.ParseCID(name); err == nil {
		f.Kind = KindMeasure
		f.CID = c
		return f
	}
	f.Kind = KindDerived
	return f
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.Fields) }

// Lookup returns the first field with the given name.
func (s Schema) Lookup(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.Fields[i], true
}

// Count returns the number of fields of kind k.
func (s Schema) Count(k Kind) int {
	n := 0
	for _, f := range s.Fields {
		if f.Kind == k {
			n++
		}
	}
	return n
}

// Selection is a governed column selection.
type Selection struct {
	// Keys are kept first, in order, when present.
	Keys []string
	// Identifiers must all be present and are always kept wide.
	Identifiers []string
	// Pairs are the governed (page, column) combinations.
	Pairs []pcl.Pair
}

// Selected is the outcome of applying a Selection to a schema.
type Selected struct {
	Identifiers []string
	Measures    []string
}

// Columns returns identifiers followed by measures.
func (s Selected) Columns() []string {
	out := make([]string, 0, len(s.Identifiers)+len(s.Measures))
	out = append(out, s.Identifiers...)
	return append(out, s.Measures...)
}

// Select keeps the key columns that exist, every listed identifier and every
// measure with an integer line whose pair is governed. Measures are ordered
// numerically by page, column and line.
func (s Schema) Select(sel Selection) (Selected, error) {
	var out Selected
	kept := make(map[string]bool)
	for _, k := range sel.Keys {
		if _, ok := s.index[k]; ok && !kept[k] {
			out.Identifiers = append(out.Identifiers, k)
			kept[k] = true
		}
	}
	var missing []string
	for _, id := range sel.Identifiers {
		if _, ok := s.index[id]; !ok {
			missing = append(missing, id)
			continue
		}
		if !kept[id] {
			out.Identifiers = append(out.Identifiers, id)
			kept[id] = true
		}
	}
	if len(missing) > 0 {
		return Selected{}, fmt.Errorf("%w: %s", ErrMissingIdentifier, strings.Join(missing, ", "))
	}

	governed := make(map[pcl.Pair]bool, len(sel.Pairs))
	for _, p := range sel.Pairs {
		governed[p] = true
	}
	var measures []Field
	for _, f := range s.Fields {
		if f.Kind != KindMeasure || f.Line < 0 || kept[f.Name] {
			continue
		}
		if governed[f.CID.Pair()] {
			measures = append(measures, f)
			kept[f.Name] = true
		}
	}
	if len(measures) == 0 {
		return Selected{}, fmt.Errorf("%w: %s", ErrNoMatch, formatPairs(sel.Pairs))
	}
	sort.SliceStable(measures, func(i, j int) bool {
		return lessField(measures[i], measures[j])
	})
	for _, f := range measures {
		out.Measures = append(out.Measures, f.Name)
	}
	return out, nil
}

func lessField(a, b Field) bool {
	if c := compareNumeric(a.CID.Page, b.CID.Page); c != 0 {
		return c < 0
	}
	if c := compareNumeric(a.CID.Col, b.CID.Col); c != 0 {
		return c < 0
	}
	return a.Line < b.Line
}

func compareNumeric(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func formatPairs(pairs []pcl.Pair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}
