package pipeline

import (
	"context"
	"errors"
	"time"

	"hadr/internal/casemix"
	"hadr/internal/colstore"
	"hadr/internal/config"
	"hadr/internal/hospital"
	"hadr/internal/output"
	"hadr/internal/pcl"
	"hadr/internal/pgstore"
	"hadr/internal/ratio"
	"hadr/internal/reconcile"
	"hadr/internal/reshape"
	"hadr/internal/schema"
)

// Report summarizes an analysis run.
type Report struct {
	RunID          string
	Rows           int
	Excluded       int
	Reconciled     int
	CaseMixMatched int
	LongRows       int
	Results        int
	Paths          output.Paths
	Saved          bool
}

// Analyze reads the longitudinal table of the selection category and
// computes cost-to-charge ratios, hospital-year totals and the
// revenue-center summary.
func Analyze(ctx context.Context, cfg *config.Config, deps Deps) (*Report, error) {
	log := deps.Logger.With().Str("component", "analyze").Str("run_id", deps.RunID.String()).Logger()
	start := time.Now()
	if (cfg.Database.Unpivot || cfg.Database.Save) && deps.Store == nil {
		return nil, stageError("analyze", "", "", errors.New("database enabled but no store configured"))
	}
	rep := &Report{RunID: deps.RunID.String()}

	src := AppendedPath(cfg.Output.Dir, cfg.Selection.Category)
	t, err := colstore.ReadTable(src)
	if err != nil {
		return nil, stageError("read", src, "", err)
	}
	rep.Rows = t.Len()

	reduced, err := reshape.Select(t, schema.Selection{
		Keys:        cfg.Selection.Keys,
		Identifiers: cfg.Selection.Identifiers,
		Pairs:       cfg.GovernedPairs(),
	})
	if err != nil {
		return nil, stageError("select", src, "", err)
	}
	log.Info().
		Int("rows", t.Len()).
		Int("columns", t.Width()).
		Int("measures", len(reduced.Measures)).
		Msg("governed columns selected")
	tbl := reduced.Table

	if cfg.Exclusions.Path != "" {
		set, err := hospital.LoadExclusions(cfg.Exclusions.Path)
		if err != nil {
			return nil, stageError("exclude", cfg.Exclusions.Path, "", err)
		}
		tbl, rep.Excluded, err = hospital.Exclude(tbl, set)
		if err != nil {
			return nil, stageError("exclude", src, "", err)
		}
		log.Info().Int("listed", len(set)).Int("rows_removed", rep.Excluded).Msg("non-comparable hospitals excluded")
	}

	tbl, err = reconcile.Reconcile(tbl, reconcile.Options{
		HospitalName: cfg.Period.HospitalName,
		BeginDate:    cfg.Period.BeginDate,
		EndDate:      cfg.Period.EndDate,
		From:         cfg.Period.FromYear,
		To:           cfg.Period.ToYear,
		Logger:       log,
		Audit:        deps.Audit,
	})
	if err != nil {
		return nil, stageError("reconcile", src, "", err)
	}
	rep.Reconciled = tbl.Len()

	if err := hospital.AddFacilityColumns(tbl); err != nil {
		return nil, stageError("enrich", src, "", err)
	}
	index := []string{pcl.FacilityNumber, cfg.Period.HospitalName, hospital.ColumnID, reconcile.ColumnYear}
	if cfg.CaseMix.Path != "" {
		entries, err := casemix.Load(deps.Reader, cfg.CaseMix.Path, cfg.CaseMix.Sheet, cfg.CaseMix.MinYear)
		if err != nil {
			return nil, stageError("case mix", cfg.CaseMix.Path, cfg.CaseMix.Sheet, err)
		}
		idx := casemix.NewIndex(entries, cfg.CaseMix.Prefer...)
		rep.CaseMixMatched, err = idx.Join(tbl, hospital.ColumnID, reconcile.ColumnYear)
		if err != nil {
			return nil, stageError("case mix", src, "", err)
		}
		index = append(index, casemix.Column)
		log.Info().Int("hospital_years", idx.Len()).Int("matched", rep.CaseMixMatched).Msg("case mix joined")
	}

	var u reshape.Unpivoter = reshape.MemoryUnpivoter{}
	if cfg.Database.Unpivot {
		u = deps.Store
	}
	long, err := reshape.Melt(ctx, u, tbl, index, reduced.Measures)
	if err != nil {
		return nil, stageError("unpivot", src, "", err)
	}
	rep.LongRows = len(long.Rows)

	wide, err := reshape.Pivot(long, index)
	if err != nil {
		return nil, stageError("pivot", src, "", err)
	}

	payers := make([]ratio.Payer, len(cfg.Ratio.Payers))
	payerNames := make([]string, len(cfg.Ratio.Payers))
	for i, p := range cfg.Ratio.Payers {
		payers[i] = ratio.Payer{Name: p.Name, Pairs: p.Pairs}
		payerNames[i] = p.Name
	}
	results := ratio.Compute(wide, ratio.Options{
		NetCost:          cfg.Ratio.NetCost,
		Adjustment:       cfg.Ratio.Adjustment,
		GrossRevenue:     cfg.Ratio.GrossRevenue,
		Payers:           payers,
		MaxRevenueCenter: cfg.Ratio.MaxRevenueCenter,
		Logger:           log,
		Audit:            deps.Audit,
	})
	totals := ratio.Totals(results, len(payers))
	summary := ratio.Summarize(results)
	rep.Results = len(results)

	rep.Paths, err = output.WriteResults(cfg.Output.Dir, output.Layout{
		Facility: pcl.FacilityNumber,
		Name:     cfg.Period.HospitalName,
		OSHPDID:  hospital.ColumnID,
		Year:     reconcile.ColumnYear,
		CaseMix:  casemix.Column,
	}, output.Results{
		RunID:        rep.RunID,
		IndexColumns: index,
		Payers:       payerNames,
		Ratios:       results,
		Totals:       totals,
		Summary:      summary,
	})
	if err != nil {
		return nil, stageError("output", cfg.Output.Dir, "", err)
	}

	if cfg.Database.Save {
		if err := deps.Store.InitSchema(ctx); err != nil {
			return nil, stageError("save", "", "", err)
		}
		run := pgstore.Run{ID: deps.RunID, IndexColumns: index, Payers: payerNames}
		if err := deps.Store.SaveResults(ctx, run, results, totals, summary); err != nil {
			return nil, stageError("save", "", "", err)
		}
		rep.Saved = true
	}

	log.Info().
		Int("rows", rep.Rows).
		Int("reconciled", rep.Reconciled).
		Int("long_rows", rep.LongRows).
		Int("results", rep.Results).
		Int("hospital_years", len(totals)).
		Int("revenue_centers", len(summary)).
		Dur("elapsed", time.Since(start)).
		Msg("analysis done")
	return rep, nil
}
