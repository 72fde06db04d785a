// Package xlsx reads raw cell grids from spreadsheet workbooks.
package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"hadr/internal/pcl"
)

// Reader reads sheets as raw cells. Values are taken unformatted so numbers
// and date serials arrive as the workbook stores them.
type Reader struct{}

// NewReader returns a workbook reader.
func NewReader() *Reader { return &Reader{} }

// ReadRows returns up to limit rows of sheet after skipping skip rows.
// A limit of zero or less reads to the end of the sheet.
func (r *Reader) ReadRows(path, sheet string, skip, limit int) ([][]pcl.Cell, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("workbook %s: sheet %q not found", path, sheet)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, path, err)
	}
	defer rows.Close()

	var out [][]pcl.Cell
	n := 0
	for rows.Next() {
		n++
		if n <= skip {
			continue
		}
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read row %d of sheet %q: %w", n, sheet, err)
		}
		row := make([]pcl.Cell, len(cols))
		for i, v := range cols {
			row[i] = pcl.ParseCell(v)
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("iterate sheet %q of %s: %w", sheet, path, err)
	}
	return out, nil
}

// Sheets lists the sheet names of a workbook in order.
func (r *Reader) Sheets(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}
