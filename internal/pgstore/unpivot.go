package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"hadr/internal/pcl"
	"hadr/internal/reshape"
	"hadr/internal/table"
)

const unpivotQuery = `
SELECT s.row_no, v.measure, v.value
FROM hadr_stage s
CROSS JOIN LATERAL unnest(s.vals, $1::text[]) WITH ORDINALITY AS v(value, measure, ord)
WHERE v.value IS NOT NULL
ORDER BY s.row_no, v.ord`

var _ reshape.Unpivoter = (*Store)(nil)

// Unpivot stages the measure columns of t in a temporary table and unpivots
// them in the database. Identifier cells are taken from t by row number so
// they keep their cell kind.
func (s *Store) Unpivot(ctx context.Context, t *table.Table, ids, measures []string) ([]reshape.UnpivotRow, error) {
	start := time.Now()
	idIdx, err := t.Indexes(ids)
	if err != nil {
		return nil, fmt.Errorf("unpivot: %w", err)
	}
	mIdx, err := t.Indexes(measures)
	if err != nil {
		return nil, fmt.Errorf("unpivot: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE hadr_stage (row_no BIGINT PRIMARY KEY, vals TEXT[] NOT NULL) ON COMMIT DROP`); err != nil {
		return nil, fmt.Errorf("create stage: %w", err)
	}

	staged, err := tx.CopyFrom(ctx, pgx.Identifier{"hadr_stage"}, []string{"row_no", "vals"},
		pgx.CopyFromSlice(len(t.Rows), func(i int) ([]any, error) {
			row := t.Rows[i]
			vals := make([]*string, len(mIdx))
			for j, mi := range mIdx {
				if row[mi].IsEmpty() {
					continue
				}
				v := sanitizeUTF8(row[mi].Text())
				vals[j] = &v
			}
			return []any{int64(i), vals}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("copy stage: %w", err)
	}

	rows, err := tx.Query(ctx, unpivotQuery, measures)
	if err != nil {
		return nil, fmt.Errorf("unpivot query: %w", err)
	}
	defer rows.Close()

	var (
		out     []reshape.UnpivotRow
		lastRow = int64(-1)
		key     []pcl.Cell
	)
	for rows.Next() {
		var (
			rowNo   int64
			measure string
			value   string
		)
		if err := rows.Scan(&rowNo, &measure, &value); err != nil {
			return nil, fmt.Errorf("scan unpivot row: %w", err)
		}
		if rowNo < 0 || rowNo >= int64(len(t.Rows)) {
			return nil, fmt.Errorf("unpivot: row %d out of range", rowNo)
		}
		if rowNo != lastRow {
			src := t.Rows[rowNo]
			key = make([]pcl.Cell, len(idIdx))
			for k, ii := range idIdx {
				key[k] = src[ii]
			}
			lastRow = rowNo
		}
		out = append(out, reshape.UnpivotRow{IDs: key, Measure: measure, Value: pcl.ParseCell(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unpivot rows: %w", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.log.Info().
		Int64("staged_rows", staged).
		Int("measures", len(measures)).
		Int("values", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("unpivot done")
	return out, nil
}
