// Package hospital handles facility identifiers: splitting the facility
// number and filtering hospitals whose reports are not comparable.
package hospital

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"hadr/internal/pcl"
	"hadr/internal/table"
)

// Derived column names.
const (
	ColumnType = "hospital_type"
	ColumnID   = "oshpd_id"
)

// Facility is a facility number split into its parts.
type Facility struct {
	Number string
	Type   string
	ID     string
}

// SplitFacility splits a facility number into its 3-character type prefix
// and the remainder zero-padded to 6 characters.
//
//	"106010735" -> type "106", id "010735"
func SplitFacility(number string) Facility {
	number = strings.TrimSpace(number)
	f := Facility{Number: number}
	if len(number) <= 3 {
		f.Type = number
		f.ID = strings.Repeat("0", 6)
		return f
	}
	f.Type = number[:3]
	f.ID = number[3:]
	if n := len(f.ID); n < 6 {
		f.ID = strings.Repeat("0", 6-n) + f.ID
	}
	return f
}

// AddFacilityColumns appends hospital_type and oshpd_id derived from the
// facility number column.
func AddFacilityColumns(t *table.Table) error {
	idx := t.Index(pcl.FacilityNumber)
	if idx < 0 {
		return fmt.Errorf("column %s not found", pcl.FacilityNumber)
	}
	t.AddColumn(ColumnType, func(row []pcl.Cell) pcl.Cell {
		return pcl.StringCell(SplitFacility(row[idx].Text()).Type)
	})
	t.AddColumn(ColumnID, func(row []pcl.Cell) pcl.Cell {
		return pcl.StringCell(SplitFacility(row[idx].Text()).ID)
	})
	return nil
}

var facilityRe = regexp.MustCompile(`\b\d{9}\b`)

type exclusionEntry struct {
	FacilityNumber string `json:"facility_number"`
}

// LoadExclusions reads the set of non-comparable facility numbers. A .json
// file holds an array of objects with a "facility_number" field; any other
// file is scanned for 9-digit runs.
func LoadExclusions(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exclusion file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var entries []exclusionEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse exclusion file: %w", err)
		}
		set := make(map[string]bool, len(entries))
		for _, e := range entries {
			n := strings.TrimSpace(e.FacilityNumber)
			if !facilityRe.MatchString(n) || len(n) != 9 {
				return nil, fmt.Errorf("invalid facility number %q", e.FacilityNumber)
			}
			set[n] = true
		}
		return set, nil
	}

	set := map[string]bool{}
	for _, m := range facilityRe.FindAllString(string(data), -1) {
		set[m] = true
	}
	return set, nil
}

// Exclude drops rows whose facility number is in the set and returns the
// number removed.
func Exclude(t *table.Table, excluded map[string]bool) (*table.Table, int, error) {
	idx := t.Index(pcl.FacilityNumber)
	if idx < 0 {
		return nil, 0, fmt.Errorf("column %s not found", pcl.FacilityNumber)
	}
	out := t.Filter(func(row []pcl.Cell) bool {
		return !excluded[strings.TrimSpace(row[idx].Text())]
	})
	return out, t.Len() - out.Len(), nil
}
