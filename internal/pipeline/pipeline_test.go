package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadr/internal/audit"
	"hadr/internal/colstore"
	"hadr/internal/config"
	"hadr/internal/output"
	"hadr/internal/pgstore"
	"hadr/internal/ratio"
	"hadr/internal/reshape"
	"hadr/internal/table"
	"hadr/internal/temporal"
	"hadr/internal/xlsx"
)

const sheetName = "Financial and Utilization Data"

func header() [][]any {
	return [][]any{
		{"Page", "Page", 0, 0, 0, 0, 10, 10, 10, 12, 12, 10, 10, 5},
		{"Col", "Col", 1, 1, 1, 1, 9, 11, 13, 1, 13, 9, 11, 1},
		{"Line", "Line", 2, 3, 36, 37, 60, 60, 60, 60, 60, 420, 420, 1},
		{"FAC_NO", "END_DT", "ID", "NAME", "BEGIN", "END", "NET", "GROSS", "ADJ", "MCARE", "PRIV", "NET", "GROSS", "OTHER"},
	}
}

func writeCycle(t *testing.T, dir, name string, data [][]any) {
	t.Helper()
	rows := append(header(), data...)
	require.NoError(t, xlsx.WriteWorkbook(filepath.Join(dir, name), xlsx.Sheet{Name: sheetName, Rows: rows}))
}

type fixture struct {
	cfg *config.Config
	out string
}

func setup(t *testing.T) fixture {
	t.Helper()
	src := t.TempDir()
	out := t.TempDir()

	writeCycle(t, src, "41hospitaldata.xlsx", [][]any{
		{"106010735", "2019-12-31", "A1", "General Hospital", "2019-01-01", "2019-12-31", 400, 1000, 100, 200, 300, 1, 2, "x"},
		{"106010736", "2019-12-31", "B1", "Valley", "2019-01-01", "2019-12-31", 50, 0, nil, 10, 10, nil, nil, nil},
		{"106010738", "2016-12-31", "D1", "Old Hospital", "2016-01-01", "2016-12-31", 1, 2, nil, nil, nil, nil, nil, nil},
	})
	writeCycle(t, src, "42hospitaldata.xlsx", [][]any{
		{"106010735", "2020-12-31", "A1", "General Hospital", "2020-10-01", "2020-12-31", 999, 1000, nil, 1, 1, nil, nil, nil},
		{"106010735", "2020-12-31", "A1", "General Hospital", "2020-01-01", "2020-12-31", 500, 1000, nil, 100, nil, nil, nil, nil},
		{"106010737", "2020-12-31", "C1", "Coast", "2020-01-01", "2020-12-31", 10, 20, nil, nil, nil, nil, nil, nil},
	})
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("not a workbook"), 0644))

	labelsPath := filepath.Join(src, "labels.xlsx")
	require.NoError(t, xlsx.WriteWorkbook(labelsPath, xlsx.Sheet{Name: "HADR", Rows: [][]any{
		{"PCL", "Data File Description", "Worksheet 1 / 2"},
		{"P10_C9_L60", "Net Costs (reallocated)", nil},
		{"P19_C2_L35", "Cost Center", "Cost Alloc"},
	}}))

	caseMix := filepath.Join(src, "case-mix.xlsx")
	require.NoError(t, xlsx.WriteWorkbook(caseMix, xlsx.Sheet{Name: "Sheet1", Rows: [][]any{
		{"county", "oshpd_id", "hospital", "FY2019", "FY2020"},
		{"Alameda", 10735, "General Hospital", 1.234, 1.5},
	}}))

	exclusions := filepath.Join(src, "non-comparable.txt")
	require.NoError(t, os.WriteFile(exclusions, []byte("Hospitals not comparable: 106010737 (Coast)\n"), 0644))

	cfg := config.Default()
	cfg.Input.Dir = src
	cfg.Input.Workers = 2
	cfg.Input.Sheets = []config.SheetConfig{{Category: "financial_utilization", Name: sheetName}}
	cfg.Output.Dir = out
	cfg.Output.CycleDir = filepath.Join(out, "cycles")
	cfg.Labels.Path = labelsPath
	cfg.CaseMix.Path = caseMix
	cfg.CaseMix.Sheet = "Sheet1"
	cfg.Exclusions.Path = exclusions
	require.NoError(t, cfg.Validate())
	return fixture{cfg: cfg, out: out}
}

func deps() Deps {
	return Deps{
		Reader: xlsx.NewReader(),
		Logger: zerolog.Nop(),
		Audit:  audit.New(),
		RunID:  uuid.New(),
	}
}

func TestIngest(t *testing.T) {
	fx := setup(t)
	got, err := Ingest(context.Background(), fx.cfg, deps())
	require.NoError(t, err)
	require.Len(t, got, 1)

	ing := got[0]
	assert.Equal(t, 6, ing.Rows)
	require.Len(t, ing.Cycles, 2)
	assert.Equal(t, 41, ing.Cycles[0].Cycle)

	tb, err := colstore.ReadTable(ing.Appended)
	require.NoError(t, err)
	assert.Equal(t, 6, tb.Len())
	assert.Equal(t, 41.0, tb.Rows[0][0].Num)
	assert.Equal(t, 42.0, tb.Rows[5][0].Num)

	cols, err := colstore.ReadColumns(ing.Labeled)
	require.NoError(t, err)
	assert.Contains(t, cols, "P10_C9_L60__Net_Costs_reallocated")
	assert.Contains(t, cols, "P10_C11_L60")
}

func TestIngestRejectsDrift(t *testing.T) {
	fx := setup(t)
	wider := append(header(), []any{"106010739", "2021-12-31", "E1", "East", "2021-01-01", "2021-12-31", 1, 2, 3, 4, 5, 6, 7, 8})
	wider[0] = append(wider[0], 5)
	wider[1] = append(wider[1], 2)
	wider[2] = append(wider[2], 1)
	require.NoError(t, xlsx.WriteWorkbook(filepath.Join(fx.cfg.Input.Dir, "43hospitaldata.xlsx"),
		xlsx.Sheet{Name: sheetName, Rows: wider}))

	_, err := Ingest(context.Background(), fx.cfg, deps())
	require.Error(t, err)
	assert.True(t, errors.Is(err, temporal.ErrSchemaDrift))
	assert.Contains(t, err.Error(), "stage append")
	_, statErr := os.Stat(AppendedPath(fx.out, "financial_utilization"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAnalyze(t *testing.T) {
	fx := setup(t)
	d := deps()
	_, err := Ingest(context.Background(), fx.cfg, d)
	require.NoError(t, err)

	rep, err := Analyze(context.Background(), fx.cfg, d)
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Rows)
	assert.Equal(t, 1, rep.Excluded)
	assert.Equal(t, 3, rep.Reconciled, "2016 dropped, short 2020 period loses")
	assert.Equal(t, 2, rep.CaseMixMatched)
	assert.Equal(t, 3, rep.Results, "revenue center 420 excluded")

	rows, err := parquet.ReadFile[output.CostToChargeRow](rep.Paths.CostToCharge)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	gh2019 := rows[0]
	assert.Equal(t, "General Hospital", *gh2019.HospitalName)
	assert.Equal(t, "010735", *gh2019.OSHPDID)
	assert.Equal(t, int32(2019), *gh2019.YearEnd)
	assert.Equal(t, 1.23, *gh2019.CaseMixIndex)
	assert.Equal(t, int32(60), gh2019.RevenueCenter)
	assert.InDelta(t, 0.5, *gh2019.Ratio, 1e-12)
	assert.InDelta(t, 100, *gh2019.PayerCosts[0].Cost, 1e-9)
	assert.InDelta(t, 150, *gh2019.PayerCosts[1].Cost, 1e-9)

	gh2020 := rows[1]
	assert.Equal(t, int32(2020), *gh2020.YearEnd)
	assert.InDelta(t, 0.5, *gh2020.Ratio, 1e-12, "the full-year report wins")
	assert.Equal(t, 1.5, *gh2020.CaseMixIndex)

	valley := rows[2]
	assert.Equal(t, "Valley", *valley.HospitalName)
	assert.Nil(t, valley.Ratio, "zero gross revenue")
	assert.Nil(t, valley.CaseMixIndex)
	assert.Nil(t, valley.PayerCosts[0].Cost)

	summary, err := parquet.ReadFile[output.SummaryRow](rep.Paths.RevenueCenterSummary)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, int32(2), summary[0].N)
	assert.InDelta(t, 0.5, *summary[0].Mean, 1e-12)
}

type fakeStore struct {
	reshape.MemoryUnpivoter
	unpivots int
	saved    []ratio.Result
	run      pgstore.Run
}

func (f *fakeStore) Unpivot(ctx context.Context, tb *table.Table, ids, measures []string) ([]reshape.UnpivotRow, error) {
	f.unpivots++
	return f.MemoryUnpivoter.Unpivot(ctx, tb, ids, measures)
}

func (f *fakeStore) InitSchema(context.Context) error { return nil }

func (f *fakeStore) SaveResults(_ context.Context, run pgstore.Run, results []ratio.Result, _ []ratio.Total, _ []ratio.Summary) error {
	f.run = run
	f.saved = results
	return nil
}

func TestAnalyzeWithStore(t *testing.T) {
	fx := setup(t)
	fx.cfg.Database.URL = "postgres://unused"
	fx.cfg.Database.Unpivot = true
	fx.cfg.Database.Save = true

	d := deps()
	_, err := Ingest(context.Background(), fx.cfg, d)
	require.NoError(t, err)

	_, err = Analyze(context.Background(), fx.cfg, d)
	require.Error(t, err, "store required")

	store := &fakeStore{}
	d.Store = store
	rep, err := Analyze(context.Background(), fx.cfg, d)
	require.NoError(t, err)
	assert.True(t, rep.Saved)
	assert.Equal(t, 1, store.unpivots)
	assert.Len(t, store.saved, 3)
	assert.Equal(t, d.RunID, store.run.ID)
	assert.Equal(t, []string{"medicare", "private"}, store.run.Payers)
}

func TestAnalyzeMissingInput(t *testing.T) {
	cfg := config.Default()
	cfg.Output.Dir = t.TempDir()
	_, err := Analyze(context.Background(), cfg, deps())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage read")
}
