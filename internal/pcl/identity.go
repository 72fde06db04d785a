package pcl

import (
	"fmt"
	"strings"
)

// HeaderRows is the number of leading sheet rows that carry coordinates.
// Only the first three are read as page, column and line.
const HeaderRows = 3

// HeaderTriple holds the page, column and line header rows of one sheet,
// aligned by position.
type HeaderTriple struct {
	Page []Cell
	Col  []Cell
	Line []Cell
}

// Width returns the number of positions in the triple.
func (h HeaderTriple) Width() int {
	return len(h.Page)
}

// HeaderFromRows builds a triple from the first three rows of a header block.
// The width is that of the widest row of the whole block; shorter rows are
// padded with empty cells, so positions only named below the triple fall back.
func HeaderFromRows(rows [][]Cell) (HeaderTriple, error) {
	if len(rows) < HeaderRows {
		return HeaderTriple{}, fmt.Errorf("header needs %d rows, got %d", HeaderRows, len(rows))
	}
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	pad := func(r []Cell) []Cell {
		out := make([]Cell, width)
		copy(out, r)
		return out
	}
	return HeaderTriple{
		Page: pad(rows[0]),
		Col:  pad(rows[1]),
		Line: pad(rows[2]),
	}, nil
}

// FallbackID returns the positional identifier for a malformed triple.
func FallbackID(pos int) string {
	return fmt.Sprintf("COL_%05d", pos)
}

// IdentityStats counts recoverable conditions met while building identifiers.
type IdentityStats struct {
	Fallbacks  int
	Duplicates int
}

// BuildColumnIDs returns one identifier per position of h. Positions 0 and 1
// are always the facility number and the report period end date.
func BuildColumnIDs(h HeaderTriple) []string {
	ids, _ := buildColumnIDs(h)
	return ids
}

// BuildUniqueIDs builds the identifiers of h and deduplicates them.
func BuildUniqueIDs(h HeaderTriple) ([]string, IdentityStats) {
	ids, fallbacks := buildColumnIDs(h)
	unique := MakeUnique(ids)
	stats := IdentityStats{Fallbacks: fallbacks}
	for i := range ids {
		if unique[i] != ids[i] {
			stats.Duplicates++
		}
	}
	return unique, stats
}

func buildColumnIDs(h HeaderTriple) ([]string, int) {
	n := h.Width()
	ids := make([]string, n)
	fallbacks := 0
	for i := 0; i < n; i++ {
		switch i {
		case 0:
			ids[i] = FacilityNumber
			continue
		case 1:
			ids[i] = ReportPeriodEndDate
			continue
		}
		cid, ok := tripleAt(h, i)
		if !ok {
			ids[i] = FallbackID(i)
			fallbacks++
			continue
		}
		ids[i] = cid.String()
	}
	return ids, fallbacks
}

func tripleAt(h HeaderTriple, i int) (CID, bool) {
	if i >= len(h.Col) || i >= len(h.Line) {
		return CID{}, false
	}
	p, c, l := h.Page[i], h.Col[i], h.Line[i]
	if p.IsEmpty() || c.IsEmpty() || l.IsEmpty() {
		return CID{}, false
	}
	cid := CID{Page: Token(p), Col: Token(c), Line: Token(l)}
	if !validComponent(cid.Page) || !validComponent(cid.Col) || !validComponent(cid.Line) {
		return CID{}, false
	}
	return cid, true
}

// validComponent rejects tokens that would break the P_C_L grammar.
func validComponent(tok string) bool {
	return tok != "" && !strings.Contains(tok, "_")
}

// MakeUnique suffixes every repeated identifier after its first occurrence
// with __dupNNN, where NNN is the 1-based occurrence count.
//
//	[A, B, A, A] -> [A, B, A__dup002, A__dup003]
func MakeUnique(ids []string) []string {
	seen := make(map[string]int, len(ids))
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		taken[id] = true
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		seen[id]++
		n := seen[id]
		if n == 1 {
			out[i] = id
			continue
		}
		name := fmt.Sprintf("%s%s%03d", id, DupMarker, n)
		// A raw header may already contain the suffixed form; keep counting.
		for taken[name] {
			seen[id]++
			name = fmt.Sprintf("%s%s%03d", id, DupMarker, seen[id])
		}
		taken[name] = true
		out[i] = name
	}
	return out
}
