package conversion

import (
	"io"

	"github.com/parquet-go/parquet-go"
)

// ColumnWriter re-encodes typed rows as Snappy-compressed Parquet.
// One ColumnWriter produces one output file; the batch converter
// creates a fresh one per part.
type ColumnWriter struct {
	writer *parquet.GenericWriter[map[string]interface{}]
	rows   int64
}

func NewColumnWriter(w io.Writer, schema *Schema) *ColumnWriter {
	return &ColumnWriter{
		writer: parquet.NewGenericWriter[map[string]interface{}](
			w,
			schema.Parquet("row"),
			parquet.Compression(&parquet.Snappy),
		),
	}
}

func (cw *ColumnWriter) WriteRow(row map[string]interface{}) error {
	_, err := cw.writer.Write([]map[string]interface{}{row})
	if err != nil {
		return err
	}
	cw.rows++
	return nil
}

// Close flushes buffered row groups and writes the file footer.
// The output is not a valid Parquet file until Close returns nil.
func (cw *ColumnWriter) Close() error {
	return cw.writer.Close()
}

// RowCount returns the number of rows written so far.
func (cw *ColumnWriter) RowCount() int64 {
	return cw.rows
}
