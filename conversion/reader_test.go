package conversion_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/conversion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, reader conversion.RowReader) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return rows
		}
		require.Nil(t, err)
		rows = append(rows, row)
	}
}

func TestCSVRowReader(t *testing.T) {
	input := "id,name\n1,alice\n2,bob\n3,carol\n"
	reader, err := conversion.NewRowReader(constants.FormatCSV, strings.NewReader(input), 2)
	require.Nil(t, err)

	require.Equal(t, []string{"id", "name"}, reader.Schema().Columns)
	assert.Equal(t, conversion.TypeInt, reader.Schema().Types[0])

	// All rows come through, including those past the sample window.
	rows := readAll(t, reader)
	require.Equal(t, 3, len(rows))
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, int64(3), rows[2]["id"])
	assert.Equal(t, "carol", rows[2]["name"])
	assert.Equal(t, int64(0), reader.Misses())
}

func TestCSVRowReaderNoHeader(t *testing.T) {
	_, err := conversion.NewRowReader(constants.FormatCSV, strings.NewReader(""), 10)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestCSVRowReaderEmptyHeaderName(t *testing.T) {
	_, err := conversion.NewRowReader(constants.FormatCSV, strings.NewReader("id,,name\n1,2,3\n"), 10)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "empty name")
}

func TestCSVRowReaderMalformedRow(t *testing.T) {
	// Wrong field count after the sample window.
	input := "id,name\n1,alice\n2,bob,EXTRA\n"
	reader, err := conversion.NewRowReader(constants.FormatCSV, strings.NewReader(input), 1)
	require.Nil(t, err)

	_, err = reader.Read() // alice, buffered
	require.Nil(t, err)
	_, err = reader.Read()
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "malformed CSV row")
	assert.True(t, conversion.IsMalformed(err))
}

// droppingReader serves its data, then fails the way a dropped
// storage connection would.
type droppingReader struct {
	data []byte
	err  error
	pos  int
}

func (r *droppingReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, r.err
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

func TestCSVRowReaderStreamError(t *testing.T) {
	streamErr := errors.New("read tcp: connection reset by peer")
	source := &droppingReader{
		data: []byte("id,name\n1,alice\n2,bob\n"),
		err:  streamErr,
	}
	reader, err := conversion.NewRowReader(constants.FormatCSV, source, 1)
	require.Nil(t, err)

	_, err = reader.Read() // alice, buffered
	require.Nil(t, err)
	_, err = reader.Read() // bob, already in the decoder's buffer
	require.Nil(t, err)
	_, err = reader.Read()
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, conversion.IsMalformed(err))
}

func TestCSVRowReaderStreamErrorDuringSample(t *testing.T) {
	source := &droppingReader{
		data: []byte("id,name\n1,alice\n"),
		err:  errors.New("read tcp: connection reset by peer"),
	}
	_, err := conversion.NewRowReader(constants.FormatCSV, source, 10)
	require.NotNil(t, err)
	assert.False(t, conversion.IsMalformed(err))
}

func TestJSONRowReaderStreamError(t *testing.T) {
	source := &droppingReader{
		data: []byte("{\"id\": 1}\n{\"id\": 2}\n"),
		err:  errors.New("read tcp: connection reset by peer"),
	}
	_, err := conversion.NewRowReader(constants.FormatNDJSON, source, 10)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.False(t, conversion.IsMalformed(err))
}

func TestJSONRowReader(t *testing.T) {
	input := `{"id": 1, "name": "alice"}
{"id": 2, "name": "bob", "active": true}

{"id": 3}
`
	reader, err := conversion.NewRowReader(constants.FormatNDJSON, strings.NewReader(input), 10)
	require.Nil(t, err)
	require.Equal(t, []string{"active", "id", "name"}, reader.Schema().Columns)

	rows := readAll(t, reader)
	require.Equal(t, 3, len(rows))
	assert.Equal(t, float64(1), rows[0]["id"])
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, true, rows[1]["active"])
	_, present := rows[2]["name"]
	assert.False(t, present)
}

func TestJSONRowReaderMalformedLine(t *testing.T) {
	_, err := conversion.NewRowReader(constants.FormatNDJSON, strings.NewReader("{not json}\n"), 10)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "malformed JSON on line 1")
	assert.True(t, conversion.IsMalformed(err))
}

func TestJSONRowReaderEmptyInput(t *testing.T) {
	_, err := conversion.NewRowReader(constants.FormatNDJSON, strings.NewReader(""), 10)
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "no rows")
}

func TestNewRowReaderUnknownFormat(t *testing.T) {
	_, err := conversion.NewRowReader(constants.FormatUnknown, strings.NewReader("x"), 10)
	assert.NotNil(t, err)
}
