package reconcile

import (
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"hadr/internal/pcl"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01/02/2006 15:04:05",
	"1/2/06",
}

// ParseDate reads a report date from a workbook serial number or from text.
// Empty and unparsable cells are not ok.
func ParseDate(c pcl.Cell) (time.Time, bool) {
	switch c.Kind {
	case pcl.KindNumber:
		return fromSerial(c.Num)
	case pcl.KindString:
		s := strings.TrimSpace(c.Raw)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func fromSerial(f float64) (time.Time, bool) {
	// Serials outside 1900..9999 are not dates.
	if f < 1 || f > 2958465 {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// days returns the whole days between two dates, ignoring time of day.
func days(begin, end time.Time) int {
	b := time.Date(begin.Year(), begin.Month(), begin.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(b).Hours() / 24)
}
