package pcl

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triple(page, col, line []Cell) HeaderTriple {
	return HeaderTriple{Page: page, Col: col, Line: line}
}

func TestBuildColumnIDs(t *testing.T) {
	h := triple(
		[]Cell{StringCell("x"), StringCell("y"), NumberCell(4.1), NumberCell(10), EmptyCell(), StringCell("12"), StringCell("A B")},
		[]Cell{StringCell("x"), StringCell("y"), NumberCell(2), NumberCell(9), NumberCell(1), StringCell("1.0"), NumberCell(1)},
		[]Cell{StringCell("x"), StringCell("y"), NumberCell(5), NumberCell(20), NumberCell(1), StringCell(" 7 "), NumberCell(1)},
	)
	ids := BuildColumnIDs(h)
	assert.Equal(t, []string{
		FacilityNumber,
		ReportPeriodEndDate,
		"P4.1_C2_L5",
		"P10_C9_L20",
		"COL_00004",
		"P12_C1_L7",
		"PA B_C1_L1",
	}, ids)
}

func TestBuildColumnIDsTextTokens(t *testing.T) {
	h := triple(
		[]Cell{EmptyCell(), EmptyCell(), StringCell(" Sched A "), StringCell("a_b")},
		[]Cell{EmptyCell(), EmptyCell(), NumberCell(1), NumberCell(1)},
		[]Cell{EmptyCell(), EmptyCell(), NumberCell(5), NumberCell(5)},
	)
	ids := BuildColumnIDs(h)
	assert.Equal(t, "PSched A_C1_L5", ids[2])
	assert.Equal(t, "COL_00003", ids[3], "separator inside a token")

	c, err := ParseCID(ids[2])
	require.NoError(t, err)
	assert.Equal(t, CID{Page: "Sched A", Col: "1", Line: "5"}, c)
}

func TestBuildColumnIDsFixedPositions(t *testing.T) {
	// Well-formed triples at positions 0 and 1 are still overridden.
	h := triple(
		[]Cell{NumberCell(1), NumberCell(1), EmptyCell()},
		[]Cell{NumberCell(1), NumberCell(2), EmptyCell()},
		[]Cell{NumberCell(1), NumberCell(3), EmptyCell()},
	)
	ids := BuildColumnIDs(h)
	require.Len(t, ids, 3)
	assert.Equal(t, FacilityNumber, ids[0])
	assert.Equal(t, ReportPeriodEndDate, ids[1])
	assert.Equal(t, "COL_00002", ids[2])
}

func TestBuildColumnIDsNeverEmpty(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	pool := []Cell{EmptyCell(), NumberCell(0), NumberCell(3.5), StringCell(" "), StringCell("a_b"), StringCell("9"), NumberCell(-1)}
	for iter := 0; iter < 200; iter++ {
		n := r.Intn(12)
		var h HeaderTriple
		for i := 0; i < n; i++ {
			h.Page = append(h.Page, pool[r.Intn(len(pool))])
			h.Col = append(h.Col, pool[r.Intn(len(pool))])
			h.Line = append(h.Line, pool[r.Intn(len(pool))])
		}
		ids := BuildColumnIDs(h)
		require.Len(t, ids, n)
		for i, id := range ids {
			assert.NotEmpty(t, id)
			switch i {
			case 0:
				assert.Equal(t, FacilityNumber, id)
			case 1:
				assert.Equal(t, ReportPeriodEndDate, id)
			default:
				if !IsFallback(id) {
					_, err := ParseCID(id)
					assert.NoError(t, err, "id %q", id)
				}
			}
		}
	}
}

func TestHeaderFromRowsSizesWholeBlock(t *testing.T) {
	rows := [][]Cell{
		{StringCell("a"), StringCell("b"), NumberCell(1), NumberCell(2)},
		{StringCell("a"), StringCell("b"), NumberCell(1)},
		{StringCell("a"), StringCell("b"), NumberCell(1), NumberCell(3)},
		{StringCell("FAC"), StringCell("END"), StringCell("X"), StringCell("Y"), StringCell("Z")},
	}
	h, err := HeaderFromRows(rows)
	require.NoError(t, err)
	assert.Equal(t, 5, h.Width(), "sized by the whole header block")
	assert.Equal(t, []string{FacilityNumber, ReportPeriodEndDate, "P1_C1_L1", "COL_00003", "COL_00004"}, BuildColumnIDs(h))

	_, err = HeaderFromRows(rows[:2])
	assert.Error(t, err)
}

func TestMakeUnique(t *testing.T) {
	in := []string{"P1_C1_L1", "P1_C1_L2", "P1_C1_L1", "P1_C1_L1", "P1_C1_L2"}
	assert.Equal(t, []string{
		"P1_C1_L1", "P1_C1_L2", "P1_C1_L1__dup002", "P1_C1_L1__dup003", "P1_C1_L2__dup002",
	}, MakeUnique(in))
}

func TestMakeUniqueAvoidsExistingSuffix(t *testing.T) {
	in := []string{"A", "A__dup002", "A"}
	out := MakeUnique(in)
	assert.Equal(t, []string{"A", "A__dup002", "A__dup003"}, out)
}

func TestMakeUniqueProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for iter := 0; iter < 200; iter++ {
		n := r.Intn(30)
		in := make([]string, n)
		for i := range in {
			in[i] = fmt.Sprintf("P%d_C1_L1", r.Intn(4))
		}
		out := MakeUnique(in)
		require.Len(t, out, n)

		seen := map[string]bool{}
		first := map[string]bool{}
		for i, id := range out {
			assert.False(t, seen[id], "duplicate %q", id)
			seen[id] = true
			if !first[in[i]] {
				first[in[i]] = true
				assert.Equal(t, in[i], id, "first occurrence modified")
			}
		}
		assert.Equal(t, out, MakeUnique(in), "not deterministic")
	}
}

func TestBuildUniqueIDsStats(t *testing.T) {
	h := triple(
		[]Cell{StringCell("a"), StringCell("b"), NumberCell(1), NumberCell(1), EmptyCell()},
		[]Cell{StringCell("a"), StringCell("b"), NumberCell(1), NumberCell(1), EmptyCell()},
		[]Cell{StringCell("a"), StringCell("b"), NumberCell(1), NumberCell(1), EmptyCell()},
	)
	ids, stats := BuildUniqueIDs(h)
	assert.Equal(t, []string{FacilityNumber, ReportPeriodEndDate, "P1_C1_L1", "P1_C1_L1__dup002", "COL_00004"}, ids)
	assert.Equal(t, IdentityStats{Fallbacks: 1, Duplicates: 1}, stats)
}

func TestParseCID(t *testing.T) {
	c, err := ParseCID("P4.1_C2_L10")
	require.NoError(t, err)
	assert.Equal(t, CID{Page: "4.1", Col: "2", Line: "10"}, c)
	assert.Equal(t, "P4.1_C2_L10", c.String())
	assert.Equal(t, "P4.1_C2", c.Pair().String())

	for _, bad := range []string{"", "COL_00004", "P1_C2", "P1_C2_L3__dup002", FacilityNumber} {
		_, err := ParseCID(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseMeasure(t *testing.T) {
	m, ok := ParseMeasure("P12.5_C13_L200")
	require.True(t, ok)
	assert.Equal(t, "12.5", m.Page)
	assert.Equal(t, "13", m.Col)
	assert.Equal(t, 200, m.Line)
	assert.Equal(t, "P12.5_C13", m.Pair())

	_, ok = ParseMeasure("P10_C9_L2.5")
	assert.False(t, ok)
	_, ok = ParseMeasure("P10_C9_L1__dup002")
	assert.False(t, ok)
}

func TestSplitDup(t *testing.T) {
	base, n := SplitDup("P1_C1_L1__dup003")
	assert.Equal(t, "P1_C1_L1", base)
	assert.Equal(t, 3, n)

	base, n = SplitDup("P1_C1_L1")
	assert.Equal(t, "P1_C1_L1", base)
	assert.Equal(t, 1, n)
}
