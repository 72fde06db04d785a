// Package config holds the run configuration. One *Config value is passed to
// every pipeline stage.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"hadr/internal/labels"
	"hadr/internal/pcl"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full run configuration.
type Config struct {
	Input      InputConfig     `toml:"input"`
	Output     OutputConfig    `toml:"output"`
	Labels     LabelsConfig    `toml:"labels"`
	Selection  SelectionConfig `toml:"selection"`
	Period     PeriodConfig    `toml:"period"`
	Ratio      RatioConfig     `toml:"ratio"`
	CaseMix    CaseMixConfig   `toml:"case_mix"`
	Exclusions ExclusionConfig `toml:"exclusions"`
	Database   DatabaseConfig  `toml:"database"`
}

// InputConfig locates the yearly workbooks.
type InputConfig struct {
	Dir           string        `toml:"dir"`
	Pattern       string        `toml:"pattern"`
	HeaderRows    int           `toml:"header_rows"`
	Workers       int           `toml:"workers"`
	AllowTruncate bool          `toml:"allow_truncate"`
	Sheets        []SheetConfig `toml:"sheets"`
}

// SheetConfig maps a sheet category to its sheet name in every workbook.
type SheetConfig struct {
	Category string `toml:"category"`
	Name     string `toml:"name"`
}

// OutputConfig locates outputs.
type OutputConfig struct {
	Dir      string `toml:"dir"`
	CycleDir string `toml:"cycle_dir"`
}

// LabelsConfig locates the label workbook. An empty path disables labeling.
type LabelsConfig struct {
	Path   string `toml:"path"`
	Sheet  string `toml:"sheet"`
	Marker string `toml:"marker"`
}

// PairConfig is a governed (page, column) pair.
type PairConfig struct {
	Page string `toml:"page"`
	Col  string `toml:"col"`
}

// SelectionConfig is the governed column selection of the analysis.
type SelectionConfig struct {
	Category    string       `toml:"category"`
	Keys        []string     `toml:"keys"`
	Identifiers []string     `toml:"identifiers"`
	Pairs       []PairConfig `toml:"pairs"`
}

// PeriodConfig names the period columns and the analysis year window.
type PeriodConfig struct {
	HospitalName string `toml:"hospital_name"`
	BeginDate    string `toml:"begin_date"`
	EndDate      string `toml:"end_date"`
	FromYear     int    `toml:"from_year"`
	ToYear       int    `toml:"to_year"`
}

// PayerConfig lists the gross revenue pairs of one payer family.
type PayerConfig struct {
	Name  string   `toml:"name"`
	Pairs []string `toml:"pairs"`
}

// RatioConfig names the pairs of the cost-to-charge ratio.
type RatioConfig struct {
	NetCost          string        `toml:"net_cost"`
	Adjustment       string        `toml:"adjustment"`
	GrossRevenue     string        `toml:"gross_revenue"`
	MaxRevenueCenter int           `toml:"max_revenue_center"`
	Payers           []PayerConfig `toml:"payers"`
}

// CaseMixConfig locates the case-mix workbook. An empty path skips the join.
type CaseMixConfig struct {
	Path    string   `toml:"path"`
	Sheet   string   `toml:"sheet"`
	MinYear int      `toml:"min_year"`
	Prefer  []string `toml:"prefer"`
}

// ExclusionConfig locates the non-comparable hospital list.
type ExclusionConfig struct {
	Path string `toml:"path"`
}

// DatabaseConfig configures the optional PostgreSQL store.
type DatabaseConfig struct {
	URL string `toml:"url"`
	// Unpivot runs the unpivot in the database instead of in memory.
	Unpivot bool `toml:"unpivot"`
	// Save writes results to the database.
	Save bool `toml:"save"`
}

// Default returns the business defaults.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			Dir:        "data_raw",
			Pattern:    "4[1-9]hospitaldata.xlsx",
			HeaderRows: 4,
			Workers:    4,
			Sheets: []SheetConfig{
				{Category: string(labels.FinancialUtilization), Name: "Financial and Utilization Data"},
				{Category: string(labels.CostAllocation), Name: "Cost Allocation Data"},
			},
		},
		Output: OutputConfig{
			Dir:      "outputs",
			CycleDir: "outputs/cycles",
		},
		Labels: LabelsConfig{
			Sheet:  labels.DefaultSheet,
			Marker: labels.DefaultMarker,
		},
		Selection: SelectionConfig{
			Category:    string(labels.FinancialUtilization),
			Keys:        []string{pcl.DisclosureCycle, pcl.FacilityNumber, pcl.ReportPeriodEndDate},
			Identifiers: []string{"P0_C1_L2", "P0_C1_L3", "P0_C1_L36", "P0_C1_L37"},
			Pairs: []PairConfig{
				{"10", "9"},  // net costs as reallocated
				{"10", "11"}, // gross revenue
				{"10", "13"}, // professional component adjustment
				{"12", "1"},  // gross inpatient revenue, Medicare traditional
				{"12", "2"},  // gross outpatient revenue, Medicare traditional
				{"12", "3"},  // gross inpatient revenue, Medicare managed care
				{"12", "4"},  // gross outpatient revenue, Medicare managed care
				{"12", "13"}, // gross inpatient revenue, private traditional
				{"12", "14"}, // gross outpatient revenue, private traditional
				{"12", "15"}, // gross inpatient revenue, private managed care
				{"12", "16"}, // gross outpatient revenue, private managed care
			},
		},
		Period: PeriodConfig{
			HospitalName: "P0_C1_L3",
			BeginDate:    "P0_C1_L36",
			EndDate:      "P0_C1_L37",
			FromYear:     2018,
			ToYear:       2022,
		},
		Ratio: RatioConfig{
			NetCost:          "P10_C9",
			Adjustment:       "P10_C13",
			GrossRevenue:     "P10_C11",
			MaxRevenueCenter: 416,
			Payers: []PayerConfig{
				{Name: "medicare", Pairs: []string{"P12_C1", "P12_C2", "P12_C3", "P12_C4"}},
				{Name: "private", Pairs: []string{"P12_C13", "P12_C14", "P12_C15", "P12_C16"}},
			},
		},
		CaseMix: CaseMixConfig{
			MinYear: 2015,
			Prefer:  []string{"FY", "CY"},
		},
	}
}

// Load overlays the TOML file at path on the defaults. A missing file yields
// the defaults. HADR_DATABASE_URL overrides the database URL.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	if v := os.Getenv("HADR_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case len(c.Input.Sheets) == 0:
		return fmt.Errorf("%w: no input sheets", ErrInvalid)
	case c.Input.HeaderRows < pcl.HeaderRows:
		return fmt.Errorf("%w: header_rows must be at least %d", ErrInvalid, pcl.HeaderRows)
	case c.Input.Workers < 1:
		return fmt.Errorf("%w: workers must be positive", ErrInvalid)
	case len(c.Selection.Pairs) == 0:
		return fmt.Errorf("%w: no governed pairs", ErrInvalid)
	case c.Period.FromYear > c.Period.ToYear:
		return fmt.Errorf("%w: year window %d..%d is inverted", ErrInvalid, c.Period.FromYear, c.Period.ToYear)
	case c.Ratio.MaxRevenueCenter <= 0:
		return fmt.Errorf("%w: max_revenue_center must be positive", ErrInvalid)
	case (c.Database.Unpivot || c.Database.Save) && c.Database.URL == "":
		return fmt.Errorf("%w: database url required for unpivot or save", ErrInvalid)
	}
	seen := map[string]bool{}
	for _, s := range c.Input.Sheets {
		if s.Category == "" || s.Name == "" {
			return fmt.Errorf("%w: sheet entries need a category and a name", ErrInvalid)
		}
		if seen[s.Category] {
			return fmt.Errorf("%w: sheet category %q repeated", ErrInvalid, s.Category)
		}
		seen[s.Category] = true
	}
	if !seen[c.Selection.Category] {
		return fmt.Errorf("%w: selection category %q is not an input sheet", ErrInvalid, c.Selection.Category)
	}
	for _, p := range c.GovernedPairs() {
		if p.Page == "" || p.Col == "" || strings.Contains(p.Page+p.Col, "_") {
			return fmt.Errorf("%w: governed pair %q has an empty or malformed page or column", ErrInvalid, p.String())
		}
	}
	ids := map[string]bool{}
	for _, id := range c.Selection.Identifiers {
		ids[id] = true
	}
	for _, need := range []string{c.Period.HospitalName, c.Period.BeginDate, c.Period.EndDate} {
		if !ids[need] {
			return fmt.Errorf("%w: period column %q is not a selected identifier", ErrInvalid, need)
		}
	}
	return nil
}

// GovernedPairs returns the selection pairs as identifier pairs. Page and
// column are normalized the way header cells are, so "10.0" and "010" both
// select page 10.
func (c *Config) GovernedPairs() []pcl.Pair {
	out := make([]pcl.Pair, len(c.Selection.Pairs))
	for i, p := range c.Selection.Pairs {
		out[i] = pcl.Pair{
			Page: pcl.Token(pcl.ParseCell(p.Page)),
			Col:  pcl.Token(pcl.ParseCell(p.Col)),
		}
	}
	return out
}

// Sheet returns the sheet name configured for category.
func (c *Config) Sheet(category string) (string, bool) {
	for _, s := range c.Input.Sheets {
		if s.Category == category {
			return s.Name, true
		}
	}
	return "", false
}
