// Package pipeline sequences the batch stages. Each stage fully materializes
// its output before the next one starts.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hadr/internal/audit"
	"hadr/internal/pcl"
	"hadr/internal/pgstore"
	"hadr/internal/ratio"
	"hadr/internal/reshape"
)

// RowReader reads raw rows of a workbook sheet.
type RowReader interface {
	ReadRows(path, sheet string, skip, limit int) ([][]pcl.Cell, error)
}

// Store is the database collaborator used when the configuration asks for
// SQL unpivoting or result persistence.
type Store interface {
	reshape.Unpivoter
	InitSchema(ctx context.Context) error
	SaveResults(ctx context.Context, run pgstore.Run, results []ratio.Result, totals []ratio.Total, summary []ratio.Summary) error
}

// Deps are the collaborators of a run.
type Deps struct {
	Reader RowReader
	// Store may be nil unless the database is enabled.
	Store  Store
	Logger zerolog.Logger
	Audit  *audit.Counters
	RunID  uuid.UUID
}

// AppendedPath returns the longitudinal file of a category.
func AppendedPath(dir, category string) string {
	return filepath.Join(dir, category+"_appended.parquet")
}

// LabeledPath returns the labeled copy of a category's longitudinal file.
func LabeledPath(dir, category string) string {
	return filepath.Join(dir, category+"_appended_labeled.parquet")
}

// stageError names the stage and the input that failed.
func stageError(stage, path, sheet string, err error) error {
	switch {
	case path != "" && sheet != "":
		return fmt.Errorf("stage %s: file %s sheet %s: %w", stage, path, sheet, err)
	case path != "":
		return fmt.Errorf("stage %s: file %s: %w", stage, path, err)
	}
	return fmt.Errorf("stage %s: %w", stage, err)
}
