// Package cycle turns one sheet of one disclosure-cycle workbook into a
// table with stable column identifiers, tagged with its cycle.
package cycle

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"hadr/internal/audit"
	"hadr/internal/pcl"
	"hadr/internal/table"
)

// ErrNoCycle is returned when a file name carries no digit run.
var ErrNoCycle = errors.New("no disclosure cycle in file name")

// DefaultHeaderRows is the number of metadata rows above the data.
const DefaultHeaderRows = 4

var digitsRe = regexp.MustCompile(`\d+`)

// FromName returns the first decimal digit run of the file's base name.
//
//	/data/41hospitaldata.xlsx -> 41
func FromName(path string) (int, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	m := digitsRe.FindString(base)
	if m == "" {
		return 0, fmt.Errorf("%w: %s", ErrNoCycle, path)
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrNoCycle, path, err)
	}
	return n, nil
}

// RowReader reads raw rows of a sheet.
type RowReader interface {
	ReadRows(path, sheet string, skip, limit int) ([][]pcl.Cell, error)
}

// Options controls how a sheet is turned into a table.
type Options struct {
	// Category names the sheet family, e.g. financial_utilization.
	Category string
	// HeaderRows is the number of rows above the data. The first three are
	// page, column and line.
	HeaderRows int
	// AllowTruncate drops cells beyond the header width instead of failing.
	AllowTruncate bool
	Logger        zerolog.Logger
	Audit         *audit.Counters
}

func (o Options) headerRows() int {
	if o.HeaderRows < pcl.HeaderRows {
		return DefaultHeaderRows
	}
	return o.HeaderRows
}

// Record is one processed sheet of one cycle.
type Record struct {
	Cycle     int
	Path      string
	Sheet     string
	Table     *table.Table
	Stats     pcl.IdentityStats
	Truncated int
}

// ProcessSheet reads the header block and data rows of sheet, builds unique
// column identifiers and prepends the DISCLOSURE_CYCLE column.
func ProcessSheet(r RowReader, path, sheet string, opts Options) (*Record, error) {
	cyc, err := FromName(path)
	if err != nil {
		return nil, err
	}
	log := opts.Logger.With().Str("file", filepath.Base(path)).Str("sheet", sheet).Int("cycle", cyc).Logger()

	hr := opts.headerRows()
	header, err := r.ReadRows(path, sheet, 0, hr)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	triple, err := pcl.HeaderFromRows(header)
	if err != nil {
		return nil, fmt.Errorf("file %s sheet %q: %w", path, sheet, err)
	}
	ids, stats := pcl.BuildUniqueIDs(triple)
	width := len(ids)

	data, err := r.ReadRows(path, sheet, hr, 0)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	columns := make([]string, 0, width+1)
	columns = append(columns, pcl.DisclosureCycle)
	columns = append(columns, ids...)
	t := table.New(columns)
	tag := pcl.NumberCell(float64(cyc))

	truncated := 0
	for i, row := range data {
		if table.IsBlank(row) {
			continue
		}
		if len(row) > width {
			extra := row[width:]
			if !table.IsBlank(extra) {
				if !opts.AllowTruncate {
					return nil, fmt.Errorf("file %s sheet %q: data row %d has %d cells, header has %d columns",
						path, sheet, hr+i+1, len(row), width)
				}
				truncated = max(truncated, lastNonEmpty(extra)+1)
			}
			row = row[:width]
		}
		out := make([]pcl.Cell, width+1)
		out[0] = tag
		copy(out[1:], row)
		t.Rows = append(t.Rows, out)
	}

	if truncated > 0 {
		log.Warn().Int("dropped_columns", truncated).Msg("data wider than header, trailing cells truncated")
		opts.Audit.TruncatedColumns(opts.Category, truncated)
	}
	opts.Audit.FallbackIDs(opts.Category, stats.Fallbacks)
	opts.Audit.DuplicateIDs(opts.Category, stats.Duplicates)
	log.Debug().
		Int("columns", width).
		Int("rows", t.Len()).
		Int("fallback_ids", stats.Fallbacks).
		Int("duplicate_ids", stats.Duplicates).
		Msg("sheet processed")

	return &Record{
		Cycle:     cyc,
		Path:      path,
		Sheet:     sheet,
		Table:     t,
		Stats:     stats,
		Truncated: truncated,
	}, nil
}

func lastNonEmpty(row []pcl.Cell) int {
	for i := len(row) - 1; i >= 0; i-- {
		if !row[i].IsEmpty() {
			return i
		}
	}
	return -1
}
