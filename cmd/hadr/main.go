package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"hadr/internal/audit"
	"hadr/internal/colstore"
	"hadr/internal/config"
	"hadr/internal/pgstore"
	"hadr/internal/pipeline"
	"hadr/internal/xlsx"
)

type app struct {
	configPath  string
	logLevel    string
	metricsFile string

	cfg   *config.Config
	log   zerolog.Logger
	audit *audit.Counters
	runID uuid.UUID
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hadr",
		Short:         "Build longitudinal tables and cost-to-charge ratios from HADR disclosure workbooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "hadr.toml", "configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write audit counters to this file in Prometheus text format")

	root.AddCommand(
		&cobra.Command{
			Use:   "ingest",
			Short: "Write per-cycle tables and append them into longitudinal tables",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.finish(a.ingest(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "analyze",
			Short: "Compute cost-to-charge ratios from the longitudinal table",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.finish(a.analyze(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Ingest, then analyze",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.ingest(cmd.Context()); err != nil {
					return a.finish(err)
				}
				return a.finish(a.analyze(cmd.Context()))
			},
		},
		&cobra.Command{
			Use:   "labels",
			Short: "Print the label maps of the configured label workbook as JSON",
			RunE: func(cmd *cobra.Command, args []string) error {
				maps, err := pipeline.LoadLabels(a.cfg, xlsx.NewReader())
				if err != nil {
					return a.finish(err)
				}
				if maps == nil {
					return a.finish(fmt.Errorf("no label workbook configured"))
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return a.finish(enc.Encode(maps))
			},
		},
		&cobra.Command{
			Use:   "columns <file.parquet>",
			Short: "Print the ordered column identifiers of a columnar file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cols, err := colstore.ReadColumns(args[0])
				if err != nil {
					return a.finish(err)
				}
				for _, c := range cols {
					fmt.Fprintln(cmd.OutOrStdout(), c)
				}
				return nil
			},
		},
	)
	return root
}

func (a *app) setup() error {
	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	a.runID = uuid.New()
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Str("run_id", a.runID.String()).
		Logger()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		a.log.Error().Err(err).Msg("load config")
		return err
	}
	if err := cfg.Validate(); err != nil {
		a.log.Error().Err(err).Msg("validate config")
		return err
	}
	a.cfg = cfg
	a.audit = audit.New()
	return nil
}

func (a *app) deps() pipeline.Deps {
	return pipeline.Deps{
		Reader: xlsx.NewReader(),
		Logger: a.log,
		Audit:  a.audit,
		RunID:  a.runID,
	}
}

func (a *app) ingest(ctx context.Context) error {
	res, err := pipeline.Ingest(ctx, a.cfg, a.deps())
	if err != nil {
		return err
	}
	for _, r := range res {
		a.log.Info().
			Str("category", r.Category).
			Int("cycles", len(r.Cycles)).
			Int("rows", r.Rows).
			Str("appended", r.Appended).
			Str("labeled", r.Labeled).
			Msg("category ingested")
	}
	return nil
}

func (a *app) analyze(ctx context.Context) error {
	deps := a.deps()
	if a.cfg.Database.Unpivot || a.cfg.Database.Save {
		store, err := pgstore.Open(ctx, a.cfg.Database.URL, a.log)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer store.Close()
		deps.Store = store
	}
	rep, err := pipeline.Analyze(ctx, a.cfg, deps)
	if err != nil {
		return err
	}
	a.log.Info().
		Int("results", rep.Results).
		Str("cost_to_charge", rep.Paths.CostToCharge).
		Str("hospital_year_costs", rep.Paths.HospitalYearCosts).
		Str("revenue_center_summary", rep.Paths.RevenueCenterSummary).
		Bool("saved", rep.Saved).
		Msg("analysis written")
	return nil
}

// finish logs the audit summary, writes the metrics file and reports err.
func (a *app) finish(err error) error {
	a.audit.Summary(a.log)
	if a.metricsFile != "" {
		if werr := a.audit.WriteFile(a.metricsFile); werr != nil {
			a.log.Error().Err(werr).Str("path", a.metricsFile).Msg("write metrics")
		}
	}
	if err != nil {
		a.log.Error().Err(err).Msg("failed")
	}
	return err
}
