// Package output writes the analysis result files.
package output

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// Writer writes typed rows to a Parquet file configured for analytical
// queries: zstd, 8KB pages and page statistics.
type Writer[T any] struct {
	path   string
	file   *os.File
	writer *parquet.GenericWriter[T]
	count  int
}

// NewWriter creates the file at path.
func NewWriter[T any](path string) (*Writer[T], error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[T](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.PageBufferSize(8*1024),
		parquet.WriteBufferSize(64*1024*1024),
		parquet.DataPageStatistics(true),
		parquet.CreatedBy("hadr", "1.0", ""),
	)

	return &Writer[T]{path: path, file: file, writer: writer}, nil
}

// Write writes a batch of rows.
func (w *Writer[T]) Write(rows []T) (int, error) {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	return n, nil
}

// Close flushes the final row group and closes the file.
func (w *Writer[T]) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Abort closes and removes the file.
func (w *Writer[T]) Abort() error {
	w.file.Close()
	return os.Remove(w.path)
}

// Count returns the total number of rows written.
func (w *Writer[T]) Count() int {
	return w.count
}

// writeFile writes rows to path in one pass, removing the file on failure.
func writeFile[T any](path string, rows []T) (err error) {
	w, err := NewWriter[T](path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			w.Abort()
		}
	}()
	const batch = 10_000
	for start := 0; start < len(rows); start += batch {
		end := min(start+batch, len(rows))
		if _, err = w.Write(rows[start:end]); err != nil {
			return err
		}
	}
	return w.Close()
}
