package output

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"hadr/internal/pcl"
	"hadr/internal/ratio"
)

// Result file names.
const (
	CostToChargeFile         = "cost_to_charge.parquet"
	HospitalYearCostsFile    = "hospital_year_costs.parquet"
	RevenueCenterSummaryFile = "revenue_center_summary.parquet"
)

// PayerCost is one payer family's cost.
type PayerCost struct {
	Payer string   `parquet:"payer"`
	Cost  *float64 `parquet:"cost,optional"`
}

// CostToChargeRow is one hospital-year-revenue-center result.
type CostToChargeRow struct {
	RunID          string      `parquet:"run_id"`
	FacilityNumber *string     `parquet:"facility_number,optional"`
	HospitalName   *string     `parquet:"hospital_name,optional"`
	OSHPDID        *string     `parquet:"oshpd_id,optional"`
	YearEnd        *int32      `parquet:"year_end,optional"`
	CaseMixIndex   *float64    `parquet:"case_mix_index,optional"`
	RevenueCenter  int32       `parquet:"revenue_center"`
	NetCost        *float64    `parquet:"net_cost,optional"`
	Adjustment     *float64    `parquet:"adjustment,optional"`
	GrossRevenue   *float64    `parquet:"gross_revenue,optional"`
	Ratio          *float64    `parquet:"cost_to_charge,optional"`
	PayerCosts     []PayerCost `parquet:"payer_costs,list"`
}

// HospitalYearRow is the summed payer costs of one hospital-year.
type HospitalYearRow struct {
	RunID          string      `parquet:"run_id"`
	FacilityNumber *string     `parquet:"facility_number,optional"`
	HospitalName   *string     `parquet:"hospital_name,optional"`
	OSHPDID        *string     `parquet:"oshpd_id,optional"`
	YearEnd        *int32      `parquet:"year_end,optional"`
	CaseMixIndex   *float64    `parquet:"case_mix_index,optional"`
	PayerCosts     []PayerCost `parquet:"payer_costs,list"`
}

// SummaryRow is the ratio distribution of one revenue center. Statistics are
// null when the revenue center has no ratio.
type SummaryRow struct {
	RunID         string   `parquet:"run_id"`
	RevenueCenter int32    `parquet:"revenue_center"`
	Mean          *float64 `parquet:"mean,optional"`
	Median        *float64 `parquet:"median,optional"`
	Min           *float64 `parquet:"min,optional"`
	Max           *float64 `parquet:"max,optional"`
	P25           *float64 `parquet:"p25,optional"`
	P75           *float64 `parquet:"p75,optional"`
	N             int32    `parquet:"n"`
}

// Layout names the index columns that carry each descriptive field. A name
// that is empty or not among the index columns leaves the field null.
type Layout struct {
	Facility string
	Name     string
	OSHPDID  string
	Year     string
	CaseMix  string
}

type descriptor struct {
	facility, name, oshpd *string
	year                  *int32
	caseMix               *float64
}

type locator struct {
	facility, name, oshpd, year, caseMix int
}

func (l Layout) locate(index []string) locator {
	pos := func(name string) int {
		if name == "" {
			return -1
		}
		for i, c := range index {
			if c == name {
				return i
			}
		}
		return -1
	}
	return locator{pos(l.Facility), pos(l.Name), pos(l.OSHPDID), pos(l.Year), pos(l.CaseMix)}
}

func (lc locator) describe(cells []pcl.Cell) descriptor {
	at := func(i int) (pcl.Cell, bool) {
		if i < 0 || i >= len(cells) || cells[i].IsEmpty() {
			return pcl.Cell{}, false
		}
		return cells[i], true
	}
	text := func(i int) *string {
		c, ok := at(i)
		if !ok {
			return nil
		}
		s := c.Text()
		return &s
	}
	var d descriptor
	d.facility = text(lc.facility)
	d.name = text(lc.name)
	d.oshpd = text(lc.oshpd)
	if c, ok := at(lc.year); ok {
		if f, ok := c.Float(); ok {
			y := int32(f)
			d.year = &y
		}
	}
	if c, ok := at(lc.caseMix); ok {
		if f, ok := c.Float(); ok {
			d.caseMix = &f
		}
	}
	return d
}

func payerCosts(payers []string, costs []*float64) []PayerCost {
	out := make([]PayerCost, len(payers))
	for i, p := range payers {
		out[i].Payer = p
		if i < len(costs) {
			out[i].Cost = costs[i]
		}
	}
	return out
}

func nanToNil(f float64) *float64 {
	if math.IsNaN(f) {
		return nil
	}
	return &f
}

// Results is the full output of one analysis run.
type Results struct {
	RunID        string
	IndexColumns []string
	Payers       []string
	Ratios       []ratio.Result
	Totals       []ratio.Total
	Summary      []ratio.Summary
}

// Paths lists the files written by WriteResults.
type Paths struct {
	CostToCharge         string
	HospitalYearCosts    string
	RevenueCenterSummary string
}

// WriteResults writes the three result files into dir. On failure no result
// file written by this call is left behind.
func WriteResults(dir string, layout Layout, res Results) (paths Paths, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir: %w", err)
	}
	paths = Paths{
		CostToCharge:         filepath.Join(dir, CostToChargeFile),
		HospitalYearCosts:    filepath.Join(dir, HospitalYearCostsFile),
		RevenueCenterSummary: filepath.Join(dir, RevenueCenterSummaryFile),
	}
	var written []string
	defer func() {
		if err != nil {
			for _, p := range written {
				os.Remove(p)
			}
		}
	}()

	lc := layout.locate(res.IndexColumns)

	ctc := make([]CostToChargeRow, len(res.Ratios))
	for i, r := range res.Ratios {
		d := lc.describe(r.Index)
		ctc[i] = CostToChargeRow{
			RunID:          res.RunID,
			FacilityNumber: d.facility,
			HospitalName:   d.name,
			OSHPDID:        d.oshpd,
			YearEnd:        d.year,
			CaseMixIndex:   d.caseMix,
			RevenueCenter:  int32(r.RevenueCenter),
			NetCost:        r.NetCost,
			Adjustment:     r.Adjustment,
			GrossRevenue:   r.GrossRevenue,
			Ratio:          r.Ratio,
			PayerCosts:     payerCosts(res.Payers, r.Costs),
		}
	}
	if err = writeFile(paths.CostToCharge, ctc); err != nil {
		return Paths{}, fmt.Errorf("write %s: %w", CostToChargeFile, err)
	}
	written = append(written, paths.CostToCharge)

	hy := make([]HospitalYearRow, len(res.Totals))
	for i, t := range res.Totals {
		d := lc.describe(t.Index)
		hy[i] = HospitalYearRow{
			RunID:          res.RunID,
			FacilityNumber: d.facility,
			HospitalName:   d.name,
			OSHPDID:        d.oshpd,
			YearEnd:        d.year,
			CaseMixIndex:   d.caseMix,
			PayerCosts:     payerCosts(res.Payers, t.Costs),
		}
	}
	if err = writeFile(paths.HospitalYearCosts, hy); err != nil {
		return Paths{}, fmt.Errorf("write %s: %w", HospitalYearCostsFile, err)
	}
	written = append(written, paths.HospitalYearCosts)

	sm := make([]SummaryRow, len(res.Summary))
	for i, s := range res.Summary {
		sm[i] = SummaryRow{
			RunID:         res.RunID,
			RevenueCenter: int32(s.RevenueCenter),
			Mean:          nanToNil(s.Mean),
			Median:        nanToNil(s.Median),
			Min:           nanToNil(s.Min),
			Max:           nanToNil(s.Max),
			P25:           nanToNil(s.P25),
			P75:           nanToNil(s.P75),
			N:             int32(s.N),
		}
	}
	if err = writeFile(paths.RevenueCenterSummary, sm); err != nil {
		return Paths{}, fmt.Errorf("write %s: %w", RevenueCenterSummaryFile, err)
	}
	return paths, nil
}
