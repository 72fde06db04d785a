package colstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"hadr/internal/pcl"
	"hadr/internal/table"
)

// Reader streams rows of a file written by Writer.
type Reader struct {
	file    *os.File
	pf      *parquet.File
	reader  *parquet.Reader
	columns []string
	leaf    []int
}

// Open opens a columnar file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	columns, err := fileColumns(pf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	leaf, err := leafIndexes(pf.Schema(), columns)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Reader{
		file:    f,
		pf:      pf,
		reader:  parquet.NewReader(pf),
		columns: columns,
		leaf:    leaf,
	}, nil
}

// fileColumns returns the logical column order recorded at write time, or
// the leaf order for files written elsewhere.
func fileColumns(pf *parquet.File) ([]string, error) {
	if raw, ok := pf.Lookup(ColumnsKey); ok {
		var columns []string
		if err := json.Unmarshal([]byte(raw), &columns); err != nil {
			return nil, fmt.Errorf("decode column order: %w", err)
		}
		return columns, nil
	}
	var columns []string
	for _, path := range pf.Schema().Columns() {
		if len(path) != 1 {
			return nil, fmt.Errorf("nested column %v not supported", path)
		}
		columns = append(columns, path[0])
	}
	return columns, nil
}

// Columns returns the logical column order.
func (r *Reader) Columns() []string { return r.columns }

// NumRows returns the number of rows in the file.
func (r *Reader) NumRows() int64 { return r.pf.NumRows() }

// Read returns up to n rows. It returns io.EOF once the file is exhausted.
func (r *Reader) Read(n int) ([][]pcl.Cell, error) {
	buf := make([]parquet.Row, n)
	got, err := r.reader.ReadRows(buf)
	out := make([][]pcl.Cell, got)
	for i := 0; i < got; i++ {
		cells := make([]pcl.Cell, len(r.columns))
		row := buf[i]
		for j, idx := range r.leaf {
			if idx >= len(row) {
				continue
			}
			v := row[idx]
			if v.IsNull() {
				continue
			}
			cells[j] = pcl.ParseCell(string(v.ByteArray()))
		}
		out[i] = cells
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return out, io.EOF
		}
		return out, fmt.Errorf("read parquet rows: %w", err)
	}
	return out, nil
}

// Close releases the file.
func (r *Reader) Close() error {
	r.reader.Close()
	return r.file.Close()
}

// ReadColumns returns the ordered column names of a file.
func ReadColumns(path string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Columns(), nil
}

// ReadTable loads a whole file into memory.
func ReadTable(path string) (*table.Table, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	t := table.New(r.Columns())
	for {
		rows, err := r.Read(10_000)
		t.Rows = append(t.Rows, rows...)
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
}
