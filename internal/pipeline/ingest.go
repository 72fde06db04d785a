package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"hadr/internal/colstore"
	"hadr/internal/config"
	"hadr/internal/cycle"
	"hadr/internal/labels"
	"hadr/internal/temporal"
)

// Ingested describes the longitudinal output of one sheet category.
type Ingested struct {
	Category string
	Cycles   []cycle.Output
	Appended string
	Rows     int
	// Labeled is empty when no label workbook is configured.
	Labeled string
}

// Discover returns the yearly workbooks matching the input pattern, sorted.
func Discover(cfg *config.Config) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(cfg.Input.Dir, cfg.Input.Pattern))
	if err != nil {
		return nil, fmt.Errorf("bad input pattern: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no workbooks match %s in %s", cfg.Input.Pattern, cfg.Input.Dir)
	}
	sort.Strings(files)
	return files, nil
}

// LoadLabels reads and splits the label workbook. It returns nil when no
// workbook is configured.
func LoadLabels(cfg *config.Config, r RowReader) (labels.Maps, error) {
	if cfg.Labels.Path == "" {
		return nil, nil
	}
	rows, err := labels.Load(r, cfg.Labels.Path, cfg.Labels.Sheet)
	if err != nil {
		return nil, stageError("labels", cfg.Labels.Path, cfg.Labels.Sheet, err)
	}
	return labels.Split(rows, cfg.Labels.Marker), nil
}

// Ingest writes one columnar file per cycle and sheet category, appends the
// cycles of each category into a longitudinal file and, when a label
// workbook is configured, writes a labeled copy of it.
func Ingest(ctx context.Context, cfg *config.Config, deps Deps) ([]Ingested, error) {
	log := deps.Logger.With().Str("component", "ingest").Logger()
	start := time.Now()

	files, err := Discover(cfg)
	if err != nil {
		return nil, stageError("discover", "", "", err)
	}
	maps, err := LoadLabels(cfg, deps.Reader)
	if err != nil {
		return nil, err
	}
	log.Info().Int("workbooks", len(files)).Bool("labels", maps != nil).Msg("ingest started")

	var out []Ingested
	for _, s := range cfg.Input.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outs, err := cycle.WriteAll(ctx, deps.Reader, files, s.Name, cfg.Output.CycleDir, cfg.Input.Workers, cycle.Options{
			Category:      s.Category,
			HeaderRows:    cfg.Input.HeaderRows,
			AllowTruncate: cfg.Input.AllowTruncate,
			Logger:        log,
			Audit:         deps.Audit,
		})
		if err != nil {
			return nil, stageError("cycles", cfg.Input.Dir, s.Name, err)
		}

		paths := make([]string, len(outs))
		for i, o := range outs {
			paths[i] = o.Path
		}
		appended := AppendedPath(cfg.Output.Dir, s.Category)
		n, err := temporal.AppendFiles(paths, appended, temporal.Options{
			Category:      s.Category,
			AllowTruncate: cfg.Input.AllowTruncate,
			Logger:        log,
			Audit:         deps.Audit,
		})
		if err != nil {
			return nil, stageError("append", appended, s.Name, err)
		}

		res := Ingested{Category: s.Category, Cycles: outs, Appended: appended, Rows: n}
		if maps != nil {
			res.Labeled = LabeledPath(cfg.Output.Dir, s.Category)
			if _, err := WriteLabeled(appended, res.Labeled, maps[labels.Universe(s.Category)]); err != nil {
				return nil, stageError("labels", res.Labeled, "", err)
			}
		}
		out = append(out, res)
	}

	log.Info().
		Int("categories", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("ingest done")
	return out, nil
}

// WriteLabeled copies the columnar file at src to dst with labeled column
// names. dst is removed if the copy fails.
func WriteLabeled(src, dst string, labelMap map[string]string) (n int, err error) {
	r, err := colstore.Open(src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	w, err := colstore.Create(dst, labels.Apply(r.Columns(), labelMap))
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			w.Abort()
		}
	}()

	for {
		rows, rerr := r.Read(10_000)
		if len(rows) > 0 {
			if _, err := w.Write(rows); err != nil {
				return 0, err
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return 0, rerr
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}
