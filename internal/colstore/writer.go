// Package colstore stores raw cell tables as Parquet files whose schema is
// only known at run time.
//
// Every column is an optional string leaf. Empty cells are nulls, all other
// cells keep their source text and are re-classified on read. Parquet groups
// order their fields by name, so the logical column order is kept in the
// file's key/value metadata.
package colstore

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"hadr/internal/pcl"
	"hadr/internal/table"
)

// ColumnsKey is the metadata key holding the JSON-encoded column order.
const ColumnsKey = "hadr.columns"

// Writer streams rows of a fixed column set into one Parquet file.
type Writer struct {
	path    string
	file    *os.File
	writer  *parquet.Writer
	columns []string
	leaf    []int
	count   int
}

// Schema builds the Parquet schema for an ordered column list.
func Schema(columns []string) (*parquet.Schema, error) {
	group := make(parquet.Group, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("empty column name")
		}
		if _, dup := group[c]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c)
		}
		group[c] = parquet.Optional(parquet.String())
	}
	return parquet.NewSchema("hadr", group), nil
}

// leafIndexes maps each logical column to its leaf position in schema.
func leafIndexes(schema *parquet.Schema, columns []string) ([]int, error) {
	leaf := make([]int, len(columns))
	for i, c := range columns {
		col, ok := schema.Lookup(c)
		if !ok {
			return nil, fmt.Errorf("column %q not in parquet schema", c)
		}
		leaf[i] = col.ColumnIndex
	}
	return leaf, nil
}

// Create opens a new file at path for the given columns.
func Create(path string, columns []string) (*Writer, error) {
	schema, err := Schema(columns)
	if err != nil {
		return nil, err
	}
	leaf, err := leafIndexes(schema, columns)
	if err != nil {
		return nil, err
	}
	order, err := json.Marshal(columns)
	if err != nil {
		return nil, fmt.Errorf("encode column order: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}

	writer := parquet.NewWriter(file, schema,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(64*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.KeyValueMetadata(ColumnsKey, string(order)),
		parquet.CreatedBy("hadr", "1.0", ""),
	)

	return &Writer{
		path:    path,
		file:    file,
		writer:  writer,
		columns: append([]string(nil), columns...),
		leaf:    leaf,
	}, nil
}

// Columns returns the logical column order of the file being written.
func (w *Writer) Columns() []string { return w.columns }

// Path returns the output path.
func (w *Writer) Path() string { return w.path }

// Write appends rows. Every row must have exactly one cell per column.
func (w *Writer) Write(rows [][]pcl.Cell) (int, error) {
	batch := make([]parquet.Row, len(rows))
	for r, cells := range rows {
		if len(cells) != len(w.columns) {
			return 0, fmt.Errorf("row %d has %d cells, want %d", w.count+r, len(cells), len(w.columns))
		}
		row := make(parquet.Row, len(cells))
		for i, c := range cells {
			idx := w.leaf[i]
			if c.IsEmpty() {
				row[idx] = parquet.Value{}.Level(0, 0, idx)
				continue
			}
			row[idx] = parquet.ByteArrayValue([]byte(c.Text())).Level(0, 1, idx)
		}
		batch[r] = row
	}
	n, err := w.writer.WriteRows(batch)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	return n, nil
}

// Count returns the total number of rows written.
func (w *Writer) Count() int {
	return w.count
}

// Close flushes the final row group and closes the file.
func (w *Writer) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Abort closes the file and removes it. Used when the output is incomplete.
func (w *Writer) Abort() error {
	w.file.Close()
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove incomplete %s: %w", w.path, err)
	}
	return nil
}

// WriteTable writes t to path in one pass and removes the file on failure.
func WriteTable(t *table.Table, path string) error {
	w, err := Create(path, t.Columns)
	if err != nil {
		return err
	}
	const batchSize = 10_000
	for start := 0; start < len(t.Rows); start += batchSize {
		end := min(start+batchSize, len(t.Rows))
		if _, err := w.Write(t.Rows[start:end]); err != nil {
			w.Abort()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
