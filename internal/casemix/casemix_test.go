package casemix

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadr/internal/pcl"
	"hadr/internal/table"
	"hadr/internal/xlsx"
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "case-mix-index.xlsx")
	require.NoError(t, xlsx.WriteWorkbook(path, xlsx.Sheet{Name: "Sheet1", Rows: [][]any{
		{"county", "oshpd_id", "hospital", "FY2014", "FY2019", "CY2019", "FY2020", "notes"},
		{"Alameda", 10735, "General Hospital", 1.1, 1.23456, 1.5, nil, "x"},
		{"Fresno", "106010736", "Valley", 0.9, nil, 1.0449, 1.2, ""},
	}}))
	return path
}

func TestLoadMelts(t *testing.T) {
	entries, err := Load(xlsx.NewReader(), writeWorkbook(t), "Sheet1", 2015)
	require.NoError(t, err)
	require.Len(t, entries, 6, "two hospitals by three periods from 2015 on")

	first := entries[0]
	assert.Equal(t, "010735", first.OSHPDID)
	assert.Equal(t, "Alameda", first.County)
	assert.Equal(t, "FY", first.PeriodType)
	assert.Equal(t, 2019, first.PeriodYear)
	require.NotNil(t, first.CaseMixIndex)
	assert.InDelta(t, 1.23456, *first.CaseMixIndex, 1e-9)

	assert.Nil(t, entries[2].CaseMixIndex, "blank FY2020")
}

func TestIndexLookupPrefersFiscalYear(t *testing.T) {
	entries, err := Load(xlsx.NewReader(), writeWorkbook(t), "Sheet1", 2015)
	require.NoError(t, err)
	idx := NewIndex(entries)

	v, ok := idx.Lookup("010735", 2019)
	require.True(t, ok)
	assert.Equal(t, 1.23, v)

	v, ok = idx.Lookup("106010736", 2019)
	require.True(t, ok, "falls back to calendar year")
	assert.Equal(t, 1.04, v)

	_, ok = idx.Lookup("010735", 2020)
	assert.False(t, ok)
}

func TestJoin(t *testing.T) {
	amount := 1.234
	idx := NewIndex([]Entry{{OSHPDID: "010735", PeriodType: "FY", PeriodYear: 2020, CaseMixIndex: &amount}})

	tb := table.New([]string{"oshpd_id", "YEAR_END"})
	tb.Rows = [][]pcl.Cell{
		{pcl.StringCell("010735"), pcl.NumberCell(2020)},
		{pcl.StringCell("010736"), pcl.NumberCell(2020)},
		{pcl.StringCell("010735"), pcl.EmptyCell()},
	}
	n, err := idx.Join(tb, "oshpd_id", "YEAR_END")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	col, ok := tb.Column(Column)
	require.True(t, ok)
	assert.Equal(t, 1.23, col[0].Num)
	assert.True(t, col[1].IsEmpty())
	assert.True(t, col[2].IsEmpty())
}

func TestMeltRequiresID(t *testing.T) {
	_, err := Melt([][]pcl.Cell{{pcl.StringCell("county"), pcl.StringCell("FY2020")}}, 2015)
	assert.Error(t, err)
}
