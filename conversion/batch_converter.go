package conversion

import (
	ctx "context"
	"fmt"
	"strings"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/util"
	"github.com/minio/minio-go/v7"
)

// BatchConverter is the heavy tier. It handles two shapes of work
// the sync converter doesn't:
//
// 1. A single raw object too large to emit as one Parquet file. The
// output rolls to a new part file every MaxRowsPerPart rows, all
// parts landing under the same partition prefix.
//
// 2. A key prefix (a job key ending in "/"). Every tabular object
// under the prefix is converted, each to its own part file.
type BatchConverter struct {
	Base
	MaxRowsPerPart int64
}

func NewBatchConverter(context *common.Context, job *service.ConversionJob) *BatchConverter {
	return &BatchConverter{
		Base: Base{
			Context:       context,
			ConversionJob: job,
		},
		MaxRowsPerPart: context.Config.BatchMaxRowsPerPart,
	}
}

func (c *BatchConverter) Run() (int, []*service.ProcessingError) {
	job := c.ConversionJob
	record := c.RecordGet()
	record.StartedAt = time.Now().UTC()
	record.Source = job.Source
	record.ProcessedBucket = c.Context.Config.ProcessedBucket

	var rows int64
	var errors []*service.ProcessingError
	if strings.HasSuffix(job.Key, "/") {
		rows, errors = c.convertPrefix(record)
	} else {
		rows, errors = c.convertLargeObject(record)
	}

	var finalErr *service.ProcessingError
	if len(errors) > 0 {
		finalErr = errors[len(errors)-1]
	}
	record.RowCount = rows
	c.finishRecord(record, finalErr)
	if len(errors) == 0 {
		c.Context.Logger.Infof("Batch converted %s/%s: %d rows in %d parts",
			job.Bucket, job.Key, rows, len(record.ProcessedKeys))
	}
	return int(rows), errors
}

// convertLargeObject streams one raw object into rolling part files.
func (c *BatchConverter) convertLargeObject(record *service.ConversionRecord) (int64, []*service.ProcessingError) {
	job := c.ConversionJob
	format := DetectFormat(job.Key, job.ContentType)
	if format == constants.FormatUnknown {
		return 0, []*service.ProcessingError{
			c.Error(job.Key, fmt.Errorf("cannot convert %s: unknown format", job.Key), true),
		}
	}
	record.Format = format

	rawObject, err := c.RawObject(job.Key)
	if err != nil {
		return 0, []*service.ProcessingError{c.Error(job.Key, err, false)}
	}
	defer rawObject.Close()

	reader, err := NewRowReader(format, rawObject, c.Context.Config.SchemaSampleRows)
	if err != nil {
		return 0, []*service.ProcessingError{c.Error(job.Key, err, IsMalformed(err))}
	}

	total, procErr := c.convertParts(reader, record, job.Source, job.Key, job.ETag, job.UploadedAt)
	record.Columns = reader.Schema().Columns
	record.CoercionMisses = reader.Misses()
	if procErr != nil {
		return total, []*service.ProcessingError{procErr}
	}
	return total, nil
}

// convertPrefix converts every tabular object under the job's key
// prefix. One bad object doesn't stop the others, but its error is
// reported.
func (c *BatchConverter) convertPrefix(record *service.ConversionRecord) (int64, []*service.ProcessingError) {
	job := c.ConversionJob
	client, err := c.Context.S3Client()
	if err != nil {
		return 0, []*service.ProcessingError{c.Error(job.Key, err, false)}
	}

	var total int64
	var errors []*service.ProcessingError
	objectCh := client.ListObjects(ctx.Background(), job.Bucket, minio.ListObjectsOptions{
		Prefix:    job.Key,
		Recursive: true,
	})
	for info := range objectCh {
		if info.Err != nil {
			errors = append(errors, c.Error(job.Key, info.Err, false))
			continue
		}
		format := DetectFormat(info.Key, info.ContentType)
		if format == constants.FormatUnknown {
			c.Context.Logger.Infof("Skipping %s: not a tabular file", info.Key)
			continue
		}
		rows, procErr := c.convertListedObject(record, info, format)
		total += rows
		if procErr != nil {
			errors = append(errors, procErr)
		}
	}
	if len(record.ProcessedKeys) == 0 && len(errors) == 0 {
		errors = append(errors, c.Error(job.Key,
			fmt.Errorf("no tabular objects under prefix %s", job.Key), true))
	}
	return total, errors
}

func (c *BatchConverter) convertListedObject(record *service.ConversionRecord, info minio.ObjectInfo, format string) (int64, *service.ProcessingError) {
	rawObject, err := c.RawObject(info.Key)
	if err != nil {
		return 0, c.Error(info.Key, err, false)
	}
	defer rawObject.Close()

	reader, err := NewRowReader(format, rawObject, c.Context.Config.SchemaSampleRows)
	if err != nil {
		return 0, c.Error(info.Key, err, IsMalformed(err))
	}
	source := util.KeySource(info.Key)
	if source == "" {
		source = c.ConversionJob.Source
	}
	rows, procErr := c.convertParts(reader, record, source,
		info.Key, util.CleanETag(info.ETag), info.LastModified)
	record.CoercionMisses += reader.Misses()
	return rows, procErr
}

// convertParts rolls the stream into part files of at most
// MaxRowsPerPart rows each, appending each uploaded key to the
// record as it lands.
func (c *BatchConverter) convertParts(reader RowReader, record *service.ConversionRecord, source, rawKey, etag string, uploadedAt time.Time) (int64, *service.ProcessingError) {
	var total int64
	for part := 0; ; part++ {
		key := ProcessedPartKey(source, rawKey, etag, uploadedAt, part)
		rows, eof, uploaded, procErr := c.convertPart(reader, key, c.MaxRowsPerPart, part > 0)
		total += rows
		if procErr != nil {
			return total, procErr
		}
		if uploaded {
			record.ProcessedKeys = append(record.ProcessedKeys, key)
		}
		if eof {
			return total, nil
		}
	}
}
