// Package ratio computes cost-to-charge ratios and payer costs per revenue
// center from the re-pivoted report table.
package ratio

import (
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"hadr/internal/audit"
	"hadr/internal/pcl"
	"hadr/internal/reshape"
)

// DefaultMaxRevenueCenter is the first line number that is not a revenue center.
const DefaultMaxRevenueCenter = 416

// Payer names the gross revenue pairs summed into one payer family's cost.
type Payer struct {
	Name  string
	Pairs []string
}

// Options names the pairs that feed the ratio.
type Options struct {
	NetCost      string
	Adjustment   string
	GrossRevenue string
	Payers       []Payer
	// MaxRevenueCenter excludes lines at or above it.
	MaxRevenueCenter int
	Logger           zerolog.Logger
	Audit            *audit.Counters
}

// Result is the ratio and payer costs of one revenue center of one report.
type Result struct {
	Index         []pcl.Cell
	RevenueCenter int
	NetCost       *float64
	Adjustment    *float64
	GrossRevenue  *float64
	Ratio         *float64
	// Costs holds one value per Options.Payers entry, nil when Ratio is nil.
	Costs []*float64
}

// Compute returns one result per wide row below the revenue center limit,
// dropping revenue centers for which no ratio could be computed in any row.
//
// The ratio is (net cost + adjustment) / gross revenue. Missing numerator
// terms count as zero; a missing or zero gross revenue yields a nil ratio.
func Compute(w *reshape.Wide, opts Options) []Result {
	limit := opts.MaxRevenueCenter
	if limit <= 0 {
		limit = DefaultMaxRevenueCenter
	}

	var results []Result
	hasRatio := map[int]bool{}
	for _, row := range w.Rows {
		if row.RevenueCenter >= limit {
			continue
		}
		r := Result{
			Index:         row.Index,
			RevenueCenter: row.RevenueCenter,
			NetCost:       row.Value(opts.NetCost),
			Adjustment:    row.Value(opts.Adjustment),
			GrossRevenue:  row.Value(opts.GrossRevenue),
		}
		r.Ratio = CostToCharge(r.NetCost, r.Adjustment, r.GrossRevenue)
		r.Costs = make([]*float64, len(opts.Payers))
		for i, p := range opts.Payers {
			r.Costs[i] = PayerCost(r.Ratio, valuesOf(row, p.Pairs)...)
		}
		if r.Ratio != nil {
			hasRatio[r.RevenueCenter] = true
		}
		results = append(results, r)
	}

	kept := results[:0]
	dropped := map[int]bool{}
	nulls := 0
	for _, r := range results {
		if !hasRatio[r.RevenueCenter] {
			dropped[r.RevenueCenter] = true
			continue
		}
		if r.Ratio == nil {
			nulls++
		}
		kept = append(kept, r)
	}

	opts.Audit.NullRatios(nulls)
	opts.Audit.DroppedRevenueCenters(len(dropped))
	opts.Logger.Info().
		Int("results", len(kept)).
		Int("null_ratios", nulls).
		Int("dropped_revenue_centers", len(dropped)).
		Msg("cost-to-charge ratios computed")
	return kept
}

func valuesOf(row reshape.WideRow, pairs []string) []*float64 {
	out := make([]*float64, len(pairs))
	for i, p := range pairs {
		out[i] = row.Value(p)
	}
	return out
}

// CostToCharge returns (net + adj) / gross, or nil when gross is nil or zero.
func CostToCharge(net, adj, gross *float64) *float64 {
	if gross == nil || *gross == 0 {
		return nil
	}
	v := (deref(net) + deref(adj)) / *gross
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// PayerCost returns ratio times the sum of revenues, missing revenues
// counting as zero. A nil ratio gives a nil cost.
func PayerCost(ratio *float64, revenues ...*float64) *float64 {
	if ratio == nil {
		return nil
	}
	sum := 0.0
	for _, r := range revenues {
		sum += deref(r)
	}
	v := *ratio * sum
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Total is the summed payer costs of one report.
type Total struct {
	Index []pcl.Cell
	// Costs holds one sum per payer; nil when every contributing cost is nil.
	Costs []*float64
}

// Totals sums payer costs across revenue centers for each distinct index.
// Totals keep the order in which each index first appears.
func Totals(results []Result, payers int) []Total {
	var out []Total
	pos := map[string]int{}
	for _, r := range results {
		k := indexKey(r.Index)
		i, ok := pos[k]
		if !ok {
			i = len(out)
			pos[k] = i
			out = append(out, Total{Index: r.Index, Costs: make([]*float64, payers)})
		}
		for p := 0; p < payers && p < len(r.Costs); p++ {
			c := r.Costs[p]
			if c == nil {
				continue
			}
			if out[i].Costs[p] == nil {
				v := 0.0
				out[i].Costs[p] = &v
			}
			*out[i].Costs[p] += *c
		}
	}
	return out
}

func indexKey(cells []pcl.Cell) string {
	var sb strings.Builder
	for _, c := range cells {
		sb.WriteString(c.Text())
		sb.WriteByte(0)
	}
	return sb.String()
}

// Summary describes the ratio distribution of one revenue center.
type Summary struct {
	RevenueCenter int
	Mean          float64
	Median        float64
	Min           float64
	Max           float64
	P25           float64
	P75           float64
	N             int
}

// Summarize returns ratio statistics per revenue center in ascending order,
// over non-nil ratios. Quantiles interpolate linearly between order statistics.
func Summarize(results []Result) []Summary {
	byRC := map[int][]float64{}
	for _, r := range results {
		if _, ok := byRC[r.RevenueCenter]; !ok {
			byRC[r.RevenueCenter] = nil
		}
		if r.Ratio != nil {
			byRC[r.RevenueCenter] = append(byRC[r.RevenueCenter], *r.Ratio)
		}
	}
	rcs := make([]int, 0, len(byRC))
	for rc := range byRC {
		rcs = append(rcs, rc)
	}
	sort.Ints(rcs)

	out := make([]Summary, 0, len(rcs))
	for _, rc := range rcs {
		vals := byRC[rc]
		s := Summary{RevenueCenter: rc, N: len(vals)}
		if len(vals) == 0 {
			nan := math.NaN()
			s.Mean, s.Median, s.Min, s.Max, s.P25, s.P75 = nan, nan, nan, nan, nan, nan
			out = append(out, s)
			continue
		}
		sort.Float64s(vals)
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		s.Mean = sum / float64(len(vals))
		s.Min = vals[0]
		s.Max = vals[len(vals)-1]
		s.Median = Quantile(vals, 0.5)
		s.P25 = Quantile(vals, 0.25)
		s.P75 = Quantile(vals, 0.75)
		out = append(out, s)
	}
	return out
}

// Quantile returns the q-quantile of sorted values by linear interpolation.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
