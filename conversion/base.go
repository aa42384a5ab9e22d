package conversion

import (
	ctx "context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/util"
	"github.com/minio/minio-go/v7"
)

// RunnableConstructor returns the processor a worker should use for
// one ConversionJob.
type RunnableConstructor func(*common.Context, *service.ConversionJob) Runnable

type Runnable interface {
	Run() (int, []*service.ProcessingError)
	Job() *service.ConversionJob
}

// Base is the base type for processors in the conversion namespace.
type Base struct {
	Context       *common.Context
	ConversionJob *service.ConversionJob
}

// Job returns this processor's ConversionJob. This satisfies part of
// the Runnable interface.
func (b *Base) Job() *service.ConversionJob {
	return b.ConversionJob
}

// Error returns a ProcessingError describing something that went
// wrong while converting this job's raw object.
func (b *Base) Error(identifier string, err error, isFatal bool) *service.ProcessingError {
	return service.NewProcessingError(
		b.ConversionJob.ID,
		identifier,
		err.Error(),
		isFatal,
	)
}

// RawObject retrieves the job's raw object. The returned object is
// a lazy stream; read errors surface on Read, not here.
func (b *Base) RawObject(key string) (*minio.Object, error) {
	client, err := b.Context.S3Client()
	if err != nil {
		return nil, err
	}
	return client.GetObject(ctx.Background(), b.ConversionJob.Bucket, key, minio.GetObjectOptions{})
}

// RecordGet returns this job's ConversionRecord from Redis, or a new
// one if none has been saved yet.
func (b *Base) RecordGet() *service.ConversionRecord {
	record, err := b.Context.RedisClient.RecordGet(b.ConversionJob.ID)
	if err != nil {
		record = service.NewConversionRecord(
			b.ConversionJob.Bucket,
			b.ConversionJob.Key,
			b.ConversionJob.ETag,
		)
	}
	return record
}

// RecordSave saves this job's ConversionRecord to Redis.
func (b *Base) RecordSave(record *service.ConversionRecord) error {
	err := b.Context.RedisClient.RecordSave(b.ConversionJob.ID, record)
	if err != nil {
		b.Context.Logger.Errorf(
			"Failed to save ConversionRecord to redis: job %s, %s: %s",
			b.ConversionJob.ID, b.ConversionJob.Key, err.Error())
	}
	return err
}

// UploadProcessed copies a finished Parquet file from the local temp
// dir into the processed bucket. S3 put errors are usually transient,
// so this retries with exponential backoff before giving up.
func (b *Base) UploadProcessed(localPath, key string) error {
	client, err := b.Context.S3Client()
	if err != nil {
		return err
	}
	put := func() error {
		_, err := client.FPutObject(
			ctx.Background(),
			b.Context.Config.ProcessedBucket,
			key,
			localPath,
			minio.PutObjectOptions{ContentType: constants.ContentTypeParquet})
		if err != nil {
			b.Context.Logger.Warningf("Upload of %s failed, may retry: %v", key, err)
		}
		return err
	}
	expBackoff := backoff.NewExponentialBackOff()
	if b.Context.Config.ProcessedUploadRetryMs > 0 {
		expBackoff.InitialInterval = b.Context.Config.ProcessedUploadRetryMs
	}
	policy := backoff.WithMaxRetries(
		expBackoff,
		uint64(b.Context.Config.ProcessedUploadRetries))
	return backoff.Retry(put, policy)
}

// ProcessedKey returns the processed-store key for a raw object.
// Output is partitioned by source and upload date, and the name
// carries an etag fragment, so converting the same version of a raw
// object twice overwrites the same processed object instead of
// creating a duplicate.
func ProcessedKey(source, rawKey, etag string, uploadedAt time.Time) string {
	return fmt.Sprintf("%s/%s-%s.parquet",
		PartitionPrefix(source, uploadedAt),
		util.BaseNameWithoutExtension(rawKey),
		shortETag(etag))
}

// ProcessedPartKey is like ProcessedKey, for one part of a large
// object the batch converter split up.
func ProcessedPartKey(source, rawKey, etag string, uploadedAt time.Time, part int) string {
	return fmt.Sprintf("%s/%s-%s-part-%05d.parquet",
		PartitionPrefix(source, uploadedAt),
		util.BaseNameWithoutExtension(rawKey),
		shortETag(etag),
		part)
}

// PartitionPrefix returns the time-and-source partition a processed
// object belongs to: <source>/year=YYYY/month=MM/day=DD.
func PartitionPrefix(source string, uploadedAt time.Time) string {
	if source == "" {
		source = constants.SourceDefault
	}
	t := uploadedAt.UTC()
	return fmt.Sprintf("%s/year=%04d/month=%02d/day=%02d",
		source, t.Year(), int(t.Month()), t.Day())
}

func shortETag(etag string) string {
	etag = util.CleanETag(etag)
	if len(etag) > 8 {
		return etag[:8]
	}
	return etag
}
