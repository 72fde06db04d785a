package xlsx

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sheet is a named grid of values to write.
type Sheet struct {
	Name string
	Rows [][]any
}

// WriteWorkbook writes sheets to a new workbook at path. Nil values leave the
// cell blank.
func WriteWorkbook(path string, sheets ...Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("new sheet %q: %w", s.Name, err)
		}
		for r, row := range s.Rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(s.Name, cell, v); err != nil {
					return fmt.Errorf("set %s!%s: %w", s.Name, cell, err)
				}
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
