package hospital

import (
	"os"
	"path/filepath"
	"testing"

	"hadr/internal/pcl"
	"hadr/internal/table"
)

func TestSplitFacility(t *testing.T) {
	tests := []struct {
		in       string
		wantType string
		wantID   string
	}{
		{"106010735", "106", "010735"},
		{"10610735", "106", "010735"},
		{" 306331164 ", "306", "331164"},
		{"12", "12", "000000"},
	}
	for _, tt := range tests {
		got := SplitFacility(tt.in)
		if got.Type != tt.wantType || got.ID != tt.wantID {
			t.Errorf("SplitFacility(%q) = %s/%s, want %s/%s", tt.in, got.Type, got.ID, tt.wantType, tt.wantID)
		}
	}
}

func TestLoadExclusionsText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "non_comparable.txt")

	data := "Kaiser Foundation Hospital 106010735\n106010736 Shriners, 12345 (not an id), 1234567890\n106010735\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	set, err := LoadExclusions(path)
	if err != nil {
		t.Fatalf("LoadExclusions: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(set), set)
	}
	if !set["106010735"] || !set["106010736"] {
		t.Errorf("missing ids: %v", set)
	}
}

func TestLoadExclusionsJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ids.json")

	data := `[{"facility_number":"106010735","name":"A"},{"facility_number":"106010736"}]`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	set, err := LoadExclusions(path)
	if err != nil {
		t.Fatalf("LoadExclusions: %v", err)
	}
	if len(set) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(set))
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`[{"facility_number":"abc"}]`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadExclusions(bad); err == nil {
		t.Fatal("expected error for invalid facility number")
	}
}

func TestLoadExclusionsMissingFile(t *testing.T) {
	if _, err := LoadExclusions("/nonexistent/ids.txt"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestExcludeAndFacilityColumns(t *testing.T) {
	tb := table.New([]string{pcl.FacilityNumber, "P0_C1_L3"})
	tb.Rows = [][]pcl.Cell{
		{pcl.ParseCell("106010735"), pcl.StringCell("General")},
		{pcl.ParseCell("106010736"), pcl.StringCell("Valley")},
	}
	out, n, err := Exclude(tb, map[string]bool{"106010736": true})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || out.Len() != 1 {
		t.Fatalf("removed %d, kept %d", n, out.Len())
	}

	if err := AddFacilityColumns(out); err != nil {
		t.Fatal(err)
	}
	row := out.Rows[0]
	if got := row[out.Index(ColumnType)].Text(); got != "106" {
		t.Errorf("hospital_type = %q", got)
	}
	if got := row[out.Index(ColumnID)].Text(); got != "010735" {
		t.Errorf("oshpd_id = %q", got)
	}
}
