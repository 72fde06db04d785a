package cycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hadr/internal/colstore"
)

// Output describes one per-cycle file written by WriteAll.
type Output struct {
	Cycle   int
	Source  string
	Path    string
	Rows    int
	Columns int
}

// OutputPath returns the per-cycle file name for a category.
func OutputPath(dir, category string, cycle int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.parquet", category, cycle))
}

// WriteAll processes sheet of every file and writes one columnar file per
// cycle into dir, running up to workers files at once. Outputs are returned
// in cycle order. If any file fails, every file written by this call is
// removed.
func WriteAll(ctx context.Context, r RowReader, files []string, sheet, dir string, workers int, opts Options) ([]Output, error) {
	if workers < 1 {
		workers = 1
	}
	seen := make(map[int]string, len(files))
	for _, f := range files {
		c, err := FromName(f)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[c]; dup {
			return nil, fmt.Errorf("cycle %d appears in both %s and %s", c, prev, f)
		}
		seen[c] = f
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		mu      sync.Mutex
		outputs []Output
		written []string
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := ProcessSheet(r, f, sheet, opts)
			if err != nil {
				return fmt.Errorf("file %s sheet %q: %w", f, sheet, err)
			}
			path := OutputPath(dir, opts.Category, rec.Cycle)
			mu.Lock()
			written = append(written, path)
			mu.Unlock()
			if err := colstore.WriteTable(rec.Table, path); err != nil {
				return fmt.Errorf("file %s sheet %q: %w", f, sheet, err)
			}
			mu.Lock()
			outputs = append(outputs, Output{
				Cycle:   rec.Cycle,
				Source:  f,
				Path:    path,
				Rows:    rec.Table.Len(),
				Columns: rec.Table.Width(),
			})
			mu.Unlock()
			opts.Logger.Info().
				Str("category", opts.Category).
				Int("cycle", rec.Cycle).
				Int("rows", rec.Table.Len()).
				Str("out", path).
				Msg("cycle written")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, p := range written {
			os.Remove(p)
		}
		return nil, err
	}

	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Cycle < outputs[j].Cycle })
	opts.Logger.Info().
		Str("category", opts.Category).
		Int("files", len(outputs)).
		Dur("elapsed", time.Since(start)).
		Msg("per-cycle files written")
	return outputs, nil
}
