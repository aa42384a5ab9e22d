package conversion

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
)

// Converter is the lightweight tier: it re-encodes one small raw
// object into exactly one Parquet object in the processed bucket.
// The bucket reader only routes objects at or below
// Config.MaxSyncFileSize to this processor.
type Converter struct {
	Base
}

func NewConverter(context *common.Context, job *service.ConversionJob) *Converter {
	return &Converter{
		Base{
			Context:       context,
			ConversionJob: job,
		},
	}
}

// Run converts the job's raw object and records the outcome. It
// returns the number of rows converted, plus any errors.
func (c *Converter) Run() (int, []*service.ProcessingError) {
	job := c.ConversionJob
	record := c.RecordGet()
	record.StartedAt = time.Now().UTC()
	record.Source = job.Source

	format := DetectFormat(job.Key, job.ContentType)
	if format == constants.FormatUnknown {
		procErr := c.Error(job.Key, fmt.Errorf("cannot convert %s: unknown format", job.Key), true)
		c.finishRecord(record, procErr)
		return 0, []*service.ProcessingError{procErr}
	}
	record.Format = format

	rawObject, err := c.RawObject(job.Key)
	if err != nil {
		procErr := c.Error(job.Key, err, false)
		c.finishRecord(record, procErr)
		return 0, []*service.ProcessingError{procErr}
	}
	defer rawObject.Close()

	reader, err := NewRowReader(format, rawObject, c.Context.Config.SchemaSampleRows)
	if err != nil {
		// Malformed input (a missing header, an unparsable JSON
		// line) is fatal; a stream error during sampling is not.
		procErr := c.Error(job.Key, err, IsMalformed(err))
		c.finishRecord(record, procErr)
		return 0, []*service.ProcessingError{procErr}
	}

	key := ProcessedKey(job.Source, job.Key, job.ETag, job.UploadedAt)
	rows, _, uploaded, procErr := c.convertPart(reader, key, 0, false)
	if procErr != nil {
		c.finishRecord(record, procErr)
		return int(rows), []*service.ProcessingError{procErr}
	}
	if uploaded {
		record.ProcessedKeys = append(record.ProcessedKeys, key)
	}
	record.ProcessedBucket = c.Context.Config.ProcessedBucket
	record.Columns = reader.Schema().Columns
	record.RowCount = rows
	record.CoercionMisses = reader.Misses()
	c.finishRecord(record, nil)

	c.Context.Logger.Infof("Converted %s/%s: %d rows -> %s",
		job.Bucket, job.Key, rows, key)
	return int(rows), nil
}

// finishRecord stamps the record and saves it to Redis. A failed
// save is logged but doesn't change the job's outcome; the record
// is bookkeeping, not the output.
func (b *Base) finishRecord(record *service.ConversionRecord, procErr *service.ProcessingError) {
	record.FinishedAt = time.Now().UTC()
	if procErr != nil {
		record.Error = procErr.Message
	}
	b.RecordSave(record)
}

// convertPart streams rows into a local temp file and uploads the
// finished Parquet file to the processed bucket. When limit is
// positive, it stops after limit rows so the caller can roll to a
// new part. When skipEmpty is true and the stream is already
// exhausted, nothing is uploaded.
func (b *Base) convertPart(reader RowReader, key string, limit int64, skipEmpty bool) (rows int64, eof bool, uploaded bool, procErr *service.ProcessingError) {
	tmp, err := os.CreateTemp(b.Context.Config.ConvertTempDir, "convert-*.parquet")
	if err != nil {
		return 0, false, false, b.Error(key, err, false)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	writer := NewColumnWriter(tmp, reader.Schema())
	for limit == 0 || rows < limit {
		row, err := reader.Read()
		if err == io.EOF {
			eof = true
			break
		}
		if err != nil {
			return rows, false, false, b.Error(b.ConversionJob.Key, err, IsMalformed(err))
		}
		if err = writer.WriteRow(row); err != nil {
			return rows, false, false, b.Error(key, err, false)
		}
		rows++
	}
	if rows == 0 && eof && skipEmpty {
		return 0, true, false, nil
	}
	if err = writer.Close(); err != nil {
		return rows, eof, false, b.Error(key, err, false)
	}
	if err = tmp.Close(); err != nil {
		return rows, eof, false, b.Error(key, err, false)
	}
	if err = b.UploadProcessed(tmp.Name(), key); err != nil {
		return rows, eof, false, b.Error(key, err, false)
	}
	return rows, eof, true, nil
}
