package pgstore

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"hadr/internal/pcl"
	"hadr/internal/ratio"
)

// Run identifies one analysis run and the layout of its result rows.
type Run struct {
	ID           uuid.UUID
	IndexColumns []string
	Payers       []string
}

// SaveResults writes the ratios, hospital-year totals and revenue-center
// summary of a run in one transaction.
func (s *Store) SaveResults(ctx context.Context, run Run, results []ratio.Result, totals []ratio.Total, summary []ratio.Summary) error {
	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO hadr_runs (run_id, index_columns, payers) VALUES ($1, $2, $3)`,
		run.ID, run.IndexColumns, run.Payers); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	nResults, err := tx.CopyFrom(ctx, pgx.Identifier{"hadr_cost_to_charge"},
		[]string{"run_id", "index_values", "revenue_center", "net_cost", "adjustment", "gross_revenue", "ratio", "payer_costs"},
		pgx.CopyFromSlice(len(results), func(i int) ([]any, error) {
			r := results[i]
			return []any{
				run.ID,
				indexText(r.Index),
				int32(r.RevenueCenter),
				floatToNumeric(r.NetCost),
				floatToNumeric(r.Adjustment),
				floatToNumeric(r.GrossRevenue),
				floatToNumeric(r.Ratio),
				numerics(r.Costs),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy cost_to_charge: %w", err)
	}

	nTotals, err := tx.CopyFrom(ctx, pgx.Identifier{"hadr_hospital_year_costs"},
		[]string{"run_id", "index_values", "payer_costs"},
		pgx.CopyFromSlice(len(totals), func(i int) ([]any, error) {
			return []any{run.ID, indexText(totals[i].Index), numerics(totals[i].Costs)}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy hospital_year_costs: %w", err)
	}

	nSummary, err := tx.CopyFrom(ctx, pgx.Identifier{"hadr_revenue_center_summary"},
		[]string{"run_id", "revenue_center", "mean", "median", "min", "max", "p25", "p75", "n"},
		pgx.CopyFromSlice(len(summary), func(i int) ([]any, error) {
			sm := summary[i]
			return []any{
				run.ID,
				int32(sm.RevenueCenter),
				float8(sm.Mean), float8(sm.Median), float8(sm.Min), float8(sm.Max),
				float8(sm.P25), float8(sm.P75),
				int32(sm.N),
			}, nil
		}))
	if err != nil {
		return fmt.Errorf("copy revenue_center_summary: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Info().
		Str("run_id", run.ID.String()).
		Int64("results", nResults).
		Int64("totals", nTotals).
		Int64("summary", nSummary).
		Dur("elapsed", time.Since(start)).
		Msg("results saved")
	return nil
}

func indexText(cells []pcl.Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = sanitizeUTF8(c.Text())
	}
	return out
}

func numerics(vals []*float64) []pgtype.Numeric {
	out := make([]pgtype.Numeric, len(vals))
	for i, v := range vals {
		out[i] = floatToNumeric(v)
	}
	return out
}

// float8 maps NaN, used for statistics of empty groups, to NULL.
func float8(f float64) pgtype.Float8 {
	if math.IsNaN(f) {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: f, Valid: true}
}
