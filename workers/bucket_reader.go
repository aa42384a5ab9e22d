package workers

import (
	ctx "context"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/conversion"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/util"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// BucketReader scans the raw bucket for objects that have no
// ConversionJob yet. For each new object it creates a job in Redis,
// queues the job ID in NSQ, and then records the (key, etag) pair in
// the seen index. A re-uploaded object gets a new etag, so it gets a
// new job; re-running the reader over unchanged objects queues
// nothing.
type BucketReader struct {
	Context *common.Context
}

func NewBucketReader() *BucketReader {
	return &BucketReader{
		Context: common.NewContext(),
	}
}

func (r *BucketReader) RunOnce() {
	r.logStartup()
	r.ScanBucket()
}

func (r *BucketReader) RunAsService() {
	r.logStartup()
	for {
		r.ScanBucket()
		r.Context.Logger.Infof("Finished. Will scan again in %s",
			r.Context.Config.BucketReaderInterval.String())
		time.Sleep(r.Context.Config.BucketReaderInterval)
	}
}

func (r *BucketReader) logStartup() {
	r.Context.Logger.Info("Starting with config settings:")
	r.Context.Logger.Info(r.Context.Config.ToJSON())
	r.Context.Logger.Infof("Scan interval: %s",
		r.Context.Config.BucketReaderInterval.String())
}

// ScanBucket lists everything in the raw bucket and queues what's new.
func (r *BucketReader) ScanBucket() {
	s3Client, err := r.Context.S3Client()
	if err != nil {
		r.Context.Logger.Errorf("Cannot scan %s: %v", r.Context.Config.RawBucket, err)
		return
	}
	objectCh := s3Client.ListObjects(
		ctx.Background(),
		r.Context.Config.RawBucket,
		minio.ListObjectsOptions{
			Prefix:    "",
			Recursive: true,
		})
	for obj := range objectCh {
		if obj.Err != nil {
			r.Context.Logger.Errorf("Error reading %s: %v", r.Context.Config.RawBucket, obj.Err)
			continue
		}
		if !IsTabular(obj.Key) {
			r.Context.Logger.Infof("Skipping %s: not a convertible file type", obj.Key)
			continue
		}
		r.ProcessObject(obj)
	}
}

// IsTabular returns true if the key names a file the converters can
// decode.
func IsTabular(key string) bool {
	return conversion.DetectFormat(key, "") != constants.FormatUnknown
}

// ProcessObject creates and queues a ConversionJob for obj, unless a
// job for this exact version of the object already exists.
func (r *BucketReader) ProcessObject(obj minio.ObjectInfo) {
	etag := util.CleanETag(obj.ETag)
	existingJobID, err := r.Context.RedisClient.SeenIndexGet(r.Context.Config.RawBucket, obj.Key, etag)
	if err != nil {
		r.Context.Logger.Errorf("Error checking seen index for %s: %v", obj.Key, err)
		return
	}
	if existingJobID != "" {
		r.Context.Logger.Infof("Skipping %s: job %s already exists for etag %s", obj.Key, existingJobID, etag)
		return
	}
	r.CreateAndQueueJob(obj)
}

func (r *BucketReader) CreateAndQueueJob(obj minio.ObjectInfo) {
	job := r.CreateJob(obj)
	if err := r.Context.RedisClient.JobSave(job); err != nil {
		r.Context.Logger.Errorf("Error saving job for %s: %v", obj.Key, err)
		return
	}
	if err := r.Context.NSQClient.Enqueue(job.Topic, job.ID); err != nil {
		// Leave no trace of the job so the next scan retries this
		// object.
		r.Context.Logger.Errorf("Error queueing job %s: %v", job.ID, err)
		if delErr := r.Context.RedisClient.JobDelete(job.ID); delErr != nil {
			r.Context.Logger.Errorf("Error deleting unqueued job %s: %v", job.ID, delErr)
		}
		return
	}
	// The seen index is written only after the job is safely in NSQ.
	// If this write fails, the next scan queues a second job for the
	// same etag. Conversion is idempotent, so a duplicate costs a
	// redundant conversion, not a lost object.
	if err := r.Context.RedisClient.SeenIndexSet(job.Bucket, job.Key, job.ETag, job.ID); err != nil {
		r.Context.Logger.Errorf("Error writing seen index for %s: %v", obj.Key, err)
	}
	job.QueuedAt = time.Now().UTC()
	if err := r.Context.RedisClient.JobSave(job); err != nil {
		r.Context.Logger.Errorf("Error marking job %s as queued: %v", job.ID, err)
		return
	}
	r.Context.Logger.Infof("Created and queued job %s for %s/%s on topic %s",
		job.ID, job.Bucket, job.Key, job.Topic)
}

func (r *BucketReader) CreateJob(obj minio.ObjectInfo) *service.ConversionJob {
	return &service.ConversionJob{
		ID:          uuid.New().String(),
		Bucket:      r.Context.Config.RawBucket,
		Key:         obj.Key,
		ETag:        util.CleanETag(obj.ETag),
		Size:        obj.Size,
		ContentType: obj.ContentType,
		Source:      util.KeySource(obj.Key),
		UploadedAt:  obj.LastModified,
		CreatedAt:   time.Now().UTC(),
		Topic:       r.TopicFor(obj.Size),
		Stage:       constants.StageReceive,
		Status:      constants.StatusPending,
		Note:        "File is in raw bucket awaiting conversion",
		Retry:       true,
	}
}

// TopicFor routes a job by raw object size: small files go to the
// sync topic, everything else to the batch topic.
func (r *BucketReader) TopicFor(size int64) string {
	if size <= r.Context.Config.MaxSyncFileSize {
		return constants.TopicConvertSync
	}
	return constants.TopicConvertBatch
}
