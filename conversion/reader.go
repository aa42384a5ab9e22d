package conversion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/datalift/ingest-services/constants"
)

// maxLineBytes caps a single NDJSON line. Lines are rows, not
// documents, so a megabyte is already generous.
const maxLineBytes = 1024 * 1024

// MalformedInputError marks input that can never convert: a missing
// or broken header, a CSV row with the wrong field count, a line that
// isn't JSON. Retrying the job won't fix the object, so the workers
// treat these as fatal. Any other error from a reader is a transient
// stream problem (a dropped connection, a storage timeout) and is
// worth retrying.
type MalformedInputError struct {
	message string
}

func (e *MalformedInputError) Error() string {
	return e.message
}

func malformed(format string, a ...interface{}) *MalformedInputError {
	return &MalformedInputError{message: fmt.Sprintf(format, a...)}
}

// IsMalformed returns true if err means the input itself is broken,
// as opposed to a transient read failure.
func IsMalformed(err error) bool {
	var malformedErr *MalformedInputError
	return errors.As(err, &malformedErr)
}

// RowReader streams typed rows decoded from a raw object. The
// schema is inferred from a bounded sample read during construction,
// then fixed for the rest of the stream.
type RowReader interface {
	Schema() *Schema

	// Read returns the next row, or io.EOF after the last one.
	// Malformed input surfaces as a MalformedInputError; anything
	// else is a transient stream error.
	Read() (map[string]interface{}, error)

	// Misses returns how many values were nulled or dropped because
	// they didn't fit the inferred schema.
	Misses() int64
}

// NewRowReader builds the reader for the given input format.
func NewRowReader(format string, r io.Reader, sampleRows int) (RowReader, error) {
	switch format {
	case constants.FormatCSV:
		return newCSVRowReader(r, sampleRows)
	case constants.FormatNDJSON:
		return newJSONRowReader(r, sampleRows)
	}
	return nil, malformed("no row decoder for format %q", format)
}

type csvRowReader struct {
	reader   *csv.Reader
	schema   *Schema
	buffered [][]string
	misses   int64
}

// classifyCSVError separates parse errors, which are malformed input,
// from errors the underlying stream returned.
func classifyCSVError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return malformed("malformed CSV row: %v", err)
	}
	return fmt.Errorf("reading CSV row: %w", err)
}

// newCSVRowReader reads the header row and buffers up to sampleRows
// records for schema inference. The header is required; a file whose
// first row is empty or unreadable is malformed.
func newCSVRowReader(r io.Reader, sampleRows int) (*csvRowReader, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, malformed("cannot read CSV header row: file is empty")
	}
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, malformed("cannot read CSV header row: %v", err)
		}
		return nil, fmt.Errorf("cannot read CSV header row: %w", err)
	}
	for i, col := range header {
		if col == "" {
			return nil, malformed("CSV header has empty name in column %d", i+1)
		}
	}
	buffered := make([][]string, 0, sampleRows)
	for len(buffered) < sampleRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyCSVError(err)
		}
		buffered = append(buffered, record)
	}
	return &csvRowReader{
		reader:   reader,
		schema:   InferSchema(header, buffered),
		buffered: buffered,
	}, nil
}

func (r *csvRowReader) Schema() *Schema {
	return r.schema
}

func (r *csvRowReader) Read() (map[string]interface{}, error) {
	var record []string
	if len(r.buffered) > 0 {
		record = r.buffered[0]
		r.buffered = r.buffered[1:]
	} else {
		var err error
		record, err = r.reader.Read()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, classifyCSVError(err)
		}
	}
	row, misses := r.schema.CoerceCSV(record)
	r.misses += int64(misses)
	return row, nil
}

func (r *csvRowReader) Misses() int64 {
	return r.misses
}

type jsonRowReader struct {
	scanner  *bufio.Scanner
	schema   *Schema
	buffered []map[string]interface{}
	line     int64
	misses   int64
}

// newJSONRowReader expects newline-delimited JSON, one object per
// line. Blank lines are skipped. The schema columns are the union
// of keys seen in the sample window.
func newJSONRowReader(r io.Reader, sampleRows int) (*jsonRowReader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	reader := &jsonRowReader{scanner: scanner}
	buffered := make([]map[string]interface{}, 0, sampleRows)
	for len(buffered) < sampleRows {
		obj, err := reader.scanObject()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		buffered = append(buffered, obj)
	}
	if len(buffered) == 0 {
		return nil, malformed("NDJSON input has no rows")
	}
	reader.schema = InferSchemaFromMaps(buffered)
	reader.buffered = buffered
	return reader, nil
}

func (r *jsonRowReader) scanObject() (map[string]interface{}, error) {
	for r.scanner.Scan() {
		r.line++
		text := bytes.TrimSpace(r.scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		obj := map[string]interface{}{}
		if err := json.Unmarshal(text, &obj); err != nil {
			return nil, malformed("malformed JSON on line %d: %v", r.line, err)
		}
		return obj, nil
	}
	if err := r.scanner.Err(); err != nil {
		if err == bufio.ErrTooLong {
			return nil, malformed("NDJSON line %d exceeds %d bytes", r.line+1, maxLineBytes)
		}
		return nil, fmt.Errorf("reading NDJSON line %d: %w", r.line+1, err)
	}
	return nil, io.EOF
}

func (r *jsonRowReader) Schema() *Schema {
	return r.schema
}

func (r *jsonRowReader) Read() (map[string]interface{}, error) {
	var obj map[string]interface{}
	if len(r.buffered) > 0 {
		obj = r.buffered[0]
		r.buffered = r.buffered[1:]
	} else {
		var err error
		obj, err = r.scanObject()
		if err != nil {
			return nil, err
		}
	}
	row, misses := r.schema.CoerceJSON(obj)
	r.misses += int64(misses)
	return row, nil
}

func (r *jsonRowReader) Misses() int64 {
	return r.misses
}
