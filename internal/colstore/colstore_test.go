package colstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hadr/internal/pcl"
	"hadr/internal/table"
)

func sampleTable() *table.Table {
	t := table.New([]string{pcl.DisclosureCycle, pcl.FacilityNumber, "P4.1_C2_L5", "P10_C9_L60", "COL_00004"})
	t.Rows = [][]pcl.Cell{
		{pcl.NumberCell(41), pcl.ParseCell("010735"), pcl.NumberCell(4.25), pcl.EmptyCell(), pcl.StringCell("note")},
		{pcl.NumberCell(41), pcl.ParseCell("106010735"), pcl.EmptyCell(), pcl.NumberCell(-12), pcl.EmptyCell()},
	}
	return t
}

func TestWriteReadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cycle_41.parquet")
	in := sampleTable()
	require.NoError(t, WriteTable(in, path))

	cols, err := ReadColumns(path)
	require.NoError(t, err)
	assert.Equal(t, in.Columns, cols, "logical column order must survive")

	out, err := ReadTable(path)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, "010735", out.Rows[0][1].Text())
	assert.Equal(t, 4.25, out.Rows[0][2].Num)
	assert.True(t, out.Rows[0][3].IsEmpty())
	assert.Equal(t, pcl.KindString, out.Rows[0][4].Kind)
	assert.Equal(t, -12.0, out.Rows[1][3].Num)
	assert.True(t, out.Rows[1][4].IsEmpty())
}

func TestWriterRejectsWrongWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	w, err := Create(path, []string{"a", "b"})
	require.NoError(t, err)
	_, err = w.Write([][]pcl.Cell{{pcl.NumberCell(1)}})
	assert.Error(t, err)
	require.NoError(t, w.Abort())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCreateRejectsDuplicateColumns(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "dup.parquet"), []string{"a", "a"})
	assert.Error(t, err)
}

func TestReaderStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "many.parquet")
	w, err := Create(path, []string{"n"})
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		_, err := w.Write([][]pcl.Cell{{pcl.NumberCell(float64(i))}})
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 25, w.Count())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.EqualValues(t, 25, r.NumRows())

	total := 0
	for {
		rows, err := r.Read(10)
		total += len(rows)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, 25, total)
}
