// Package temporal merges per-cycle tables into one longitudinal table.
package temporal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"hadr/internal/audit"
	"hadr/internal/colstore"
	"hadr/internal/cycle"
	"hadr/internal/table"
)

// ErrSchemaDrift is returned when cycles disagree on their column schema.
var ErrSchemaDrift = errors.New("schema drift across cycles")

// DriftError describes the first disagreement between two cycle schemas.
type DriftError struct {
	Source   string
	Position int
	Want     string
	Got      string
	WantLen  int
	GotLen   int
}

func (e *DriftError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("%s: %d columns, expected %d", e.Source, e.GotLen, e.WantLen)
	}
	return fmt.Sprintf("%s: column %d is %q, expected %q", e.Source, e.Position, e.Got, e.Want)
}

func (e *DriftError) Unwrap() error { return ErrSchemaDrift }

// Options controls the merge.
type Options struct {
	Category string
	// AllowTruncate aligns every cycle to the shortest schema and drops the
	// trailing columns of longer ones. The shared prefix must still match.
	AllowTruncate bool
	Logger        zerolog.Logger
	Audit         *audit.Counters
	// BatchSize is the number of rows copied per read in AppendFiles.
	BatchSize int
}

// Part is one cycle's table.
type Part struct {
	Cycle  int
	Source string
	Table  *table.Table
}

// Append concatenates parts in cycle order.
func Append(parts []Part, opts Options) (*table.Table, error) {
	if len(parts) == 0 {
		return nil, errors.New("append: no cycles")
	}
	parts = append([]Part(nil), parts...)
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Cycle < parts[j].Cycle })

	schemas := make([]schemaOf, len(parts))
	for i, p := range parts {
		schemas[i] = schemaOf{source: p.Source, columns: p.Table.Columns}
	}
	columns, err := resolve(schemas, opts)
	if err != nil {
		return nil, err
	}

	out := table.New(columns)
	w := len(columns)
	for _, p := range parts {
		for _, row := range p.Table.Rows {
			out.Rows = append(out.Rows, row[:w:w])
		}
	}
	opts.Audit.RowsAppended(opts.Category, out.Len())
	return out, nil
}

// AppendFiles streams the per-cycle files in paths into one file at out,
// ordered by the cycle in each file name. out is removed if the merge fails.
func AppendFiles(paths []string, out string, opts Options) (n int, err error) {
	if len(paths) == 0 {
		return 0, errors.New("append: no cycle files")
	}
	type cycleFile struct {
		cycle int
		path  string
	}
	files := make([]cycleFile, len(paths))
	for i, p := range paths {
		c, err := cycle.FromName(p)
		if err != nil {
			return 0, err
		}
		files[i] = cycleFile{cycle: c, path: p}
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].cycle < files[j].cycle })

	schemas := make([]schemaOf, len(files))
	for i, f := range files {
		cols, err := colstore.ReadColumns(f.path)
		if err != nil {
			return 0, err
		}
		schemas[i] = schemaOf{source: f.path, columns: cols}
	}
	columns, err := resolve(schemas, opts)
	if err != nil {
		return 0, err
	}

	w, err := colstore.Create(out, columns)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			w.Abort()
		}
	}()

	batch := opts.BatchSize
	if batch <= 0 {
		batch = 10_000
	}
	start := time.Now()
	lastLog := start
	width := len(columns)
	for _, f := range files {
		r, err := colstore.Open(f.path)
		if err != nil {
			return 0, err
		}
		for {
			rows, rerr := r.Read(batch)
			for i := range rows {
				rows[i] = rows[i][:width]
			}
			if len(rows) > 0 {
				if _, err := w.Write(rows); err != nil {
					r.Close()
					return 0, fmt.Errorf("append %s: %w", f.path, err)
				}
			}
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				r.Close()
				return 0, fmt.Errorf("append %s: %w", f.path, rerr)
			}
			if time.Since(lastLog) >= 5*time.Second {
				elapsed := time.Since(start).Seconds()
				opts.Logger.Info().
					Int("rows", w.Count()).
					Float64("rows_per_sec", float64(w.Count())/elapsed).
					Msg("append progress")
				lastLog = time.Now()
			}
		}
		r.Close()
	}
	if err := w.Close(); err != nil {
		os.Remove(out)
		return 0, err
	}

	opts.Audit.RowsAppended(opts.Category, w.Count())
	opts.Logger.Info().
		Str("category", opts.Category).
		Int("cycles", len(files)).
		Int("rows", w.Count()).
		Int("columns", width).
		Str("out", out).
		Dur("elapsed", time.Since(start)).
		Msg("cycles appended")
	return w.Count(), nil
}

type schemaOf struct {
	source  string
	columns []string
}

// resolve returns the output schema. Without truncation every schema must
// equal the first; with it the shortest schema wins and must prefix the rest.
func resolve(schemas []schemaOf, opts Options) ([]string, error) {
	ref := schemas[0]
	if opts.AllowTruncate {
		for _, s := range schemas[1:] {
			if len(s.columns) < len(ref.columns) {
				ref = s
			}
		}
	}
	for _, s := range schemas {
		if !opts.AllowTruncate && len(s.columns) != len(ref.columns) {
			return nil, &DriftError{Source: s.source, Position: -1, WantLen: len(ref.columns), GotLen: len(s.columns)}
		}
		for i, name := range ref.columns {
			if s.columns[i] != name {
				return nil, &DriftError{Source: s.source, Position: i, Want: name, Got: s.columns[i]}
			}
		}
	}
	if opts.AllowTruncate {
		dropped := 0
		for _, s := range schemas {
			if d := len(s.columns) - len(ref.columns); d > 0 {
				dropped += d
				opts.Logger.Warn().
					Str("source", s.source).
					Int("dropped_columns", d).
					Strs("dropped", s.columns[len(ref.columns):]).
					Msg("truncating cycle to shared schema")
			}
		}
		opts.Audit.TruncatedColumns(opts.Category, dropped)
	}
	return append([]string(nil), ref.columns...), nil
}
