package service

import (
	"encoding/json"
	"time"
)

// ConversionRecord maps one raw object to the processed objects
// derived from it. The sync converter always produces exactly one
// processed key; the batch converter may produce several part files
// under the same partition prefix. Every processed object derives
// from exactly one raw object, and conversion never touches the raw
// object itself.
type ConversionRecord struct {
	RawBucket       string    `json:"raw_bucket"`
	RawKey          string    `json:"raw_key"`
	ETag            string    `json:"etag"`
	Source          string    `json:"source"`
	Format          string    `json:"format"`
	ProcessedBucket string    `json:"processed_bucket"`
	ProcessedKeys   []string  `json:"processed_keys"`
	Columns         []string  `json:"columns"`
	RowCount        int64     `json:"row_count"`
	CoercionMisses  int64     `json:"coercion_misses"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Error           string    `json:"error,omitempty"`
}

func NewConversionRecord(rawBucket, rawKey, etag string) *ConversionRecord {
	return &ConversionRecord{
		RawBucket:     rawBucket,
		RawKey:        rawKey,
		ETag:          etag,
		ProcessedKeys: make([]string, 0),
	}
}

func ConversionRecordFromJSON(jsonData string) (*ConversionRecord, error) {
	record := &ConversionRecord{}
	err := json.Unmarshal([]byte(jsonData), record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (record *ConversionRecord) ToJSON() (string, error) {
	bytes, err := json.Marshal(record)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Succeeded returns true if conversion finished and produced at
// least one processed object without error.
func (record *ConversionRecord) Succeeded() bool {
	return !record.FinishedAt.IsZero() && record.Error == "" &&
		len(record.ProcessedKeys) > 0
}
