package conversion

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// ColumnType is the inferred type of one column. Types widen in
// declaration order: a column sampled as int that later shows a
// float becomes float; anything mixed beyond that becomes string.
type ColumnType int

const (
	TypeUnknown ColumnType = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
)

// Schema describes the columns of one tabular file. Column order
// follows the CSV header; for NDJSON input it is the sorted union
// of keys seen in the sample window.
type Schema struct {
	Columns []string
	Types   []ColumnType
}

// InferSchema infers column types from a sample of CSV rows. Columns
// whose sampled values are all empty default to string.
func InferSchema(columns []string, sample [][]string) *Schema {
	types := make([]ColumnType, len(columns))
	for _, row := range sample {
		for i := range columns {
			if i >= len(row) {
				continue
			}
			types[i] = widen(types[i], inferValueType(row[i]))
		}
	}
	for i := range types {
		if types[i] == TypeUnknown {
			types[i] = TypeString
		}
	}
	return &Schema{Columns: columns, Types: types}
}

// InferSchemaFromMaps infers a schema from a sample of decoded JSON
// objects. Nested values (objects, arrays) are stored as JSON text.
func InferSchemaFromMaps(sample []map[string]interface{}) *Schema {
	seen := map[string]ColumnType{}
	for _, row := range sample {
		for key, value := range row {
			seen[key] = widen(seen[key], jsonValueType(value))
		}
	}
	columns := make([]string, 0, len(seen))
	for key := range seen {
		columns = append(columns, key)
	}
	sort.Strings(columns)
	types := make([]ColumnType, len(columns))
	for i, col := range columns {
		types[i] = seen[col]
		if types[i] == TypeUnknown {
			types[i] = TypeString
		}
	}
	return &Schema{Columns: columns, Types: types}
}

func inferValueType(s string) ColumnType {
	if s == "" {
		return TypeUnknown
	}
	if s == "true" || s == "false" {
		return TypeBool
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return TypeInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return TypeFloat
	}
	return TypeString
}

func jsonValueType(value interface{}) ColumnType {
	switch value.(type) {
	case nil:
		return TypeUnknown
	case bool:
		return TypeBool
	case float64:
		return TypeFloat
	case string:
		return TypeString
	default:
		return TypeString
	}
}

// widen merges the type seen so far with the type of a new value.
func widen(a, b ColumnType) ColumnType {
	if a == b || b == TypeUnknown {
		return a
	}
	if a == TypeUnknown {
		return b
	}
	if (a == TypeInt && b == TypeFloat) || (a == TypeFloat && b == TypeInt) {
		return TypeFloat
	}
	return TypeString
}

// Parquet builds the parquet schema for these columns. Every column
// is optional so missing and unparsable values become nulls.
func (s *Schema) Parquet(name string) *parquet.Schema {
	group := parquet.Group{}
	for i, col := range s.Columns {
		group[col] = parquet.Optional(parquetNode(s.Types[i]))
	}
	return parquet.NewSchema(name, group)
}

func parquetNode(t ColumnType) parquet.Node {
	switch t {
	case TypeBool:
		return parquet.Leaf(parquet.BooleanType)
	case TypeInt:
		return parquet.Int(64)
	case TypeFloat:
		return parquet.Leaf(parquet.DoubleType)
	default:
		return parquet.String()
	}
}

// CoerceCSV converts one CSV record into a typed row. Values that
// don't parse as the inferred column type become nulls, and the
// miss count is returned so the conversion record can report it.
// Empty strings are nulls, not misses.
func (s *Schema) CoerceCSV(record []string) (map[string]interface{}, int) {
	row := make(map[string]interface{}, len(s.Columns))
	misses := 0
	for i, col := range s.Columns {
		if i >= len(record) || record[i] == "" {
			continue
		}
		value, ok := coerceValue(record[i], s.Types[i])
		if !ok {
			misses++
			continue
		}
		row[col] = value
	}
	return row, misses
}

// CoerceJSON converts one decoded JSON object into a typed row.
// Keys not present in the schema (seen only after the sample window)
// count as misses and are dropped, since the parquet schema is fixed
// once writing begins.
func (s *Schema) CoerceJSON(obj map[string]interface{}) (map[string]interface{}, int) {
	index := make(map[string]int, len(s.Columns))
	for i, col := range s.Columns {
		index[col] = i
	}
	row := make(map[string]interface{}, len(s.Columns))
	misses := 0
	for key, value := range obj {
		if value == nil {
			continue
		}
		i, ok := index[key]
		if !ok {
			misses++
			continue
		}
		coerced, ok := coerceJSONValue(value, s.Types[i])
		if !ok {
			misses++
			continue
		}
		row[key] = coerced
	}
	return row, misses
}

func coerceValue(s string, t ColumnType) (interface{}, bool) {
	switch t {
	case TypeBool:
		if s == "true" {
			return true, true
		}
		if s == "false" {
			return false, true
		}
		return nil, false
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return s, true
	}
}

func coerceJSONValue(value interface{}, t ColumnType) (interface{}, bool) {
	switch t {
	case TypeBool:
		b, ok := value.(bool)
		return b, ok
	case TypeFloat:
		f, ok := value.(float64)
		return f, ok
	case TypeInt:
		f, ok := value.(float64)
		if !ok {
			return nil, false
		}
		return int64(f), true
	default:
		if s, ok := value.(string); ok {
			return s, true
		}
		// Nested objects and arrays are stored as JSON text.
		data, err := json.Marshal(value)
		if err != nil {
			return nil, false
		}
		return string(data), true
	}
}
