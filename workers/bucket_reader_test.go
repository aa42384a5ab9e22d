package workers_test

import (
	"testing"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/util/logger"
	"github.com/datalift/ingest-services/workers"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBucketReader() *workers.BucketReader {
	return &workers.BucketReader{
		Context: &common.Context{
			Config: &common.Config{
				RawBucket:       "raw-uploads",
				MaxSyncFileSize: int64(64 * 1024 * 1024),
			},
			Logger: logger.DiscardLogger(),
		},
	}
}

func TestIsTabular(t *testing.T) {
	assert.True(t, workers.IsTabular("acme/orders.csv"))
	assert.True(t, workers.IsTabular("acme/events.ndjson"))
	assert.True(t, workers.IsTabular("acme/events.jsonl"))
	assert.True(t, workers.IsTabular("acme/events.json"))
	assert.False(t, workers.IsTabular("acme/report.pdf"))
	assert.False(t, workers.IsTabular("acme/orders"))
	assert.False(t, workers.IsTabular("acme/archive.tar"))
}

func TestTopicFor(t *testing.T) {
	reader := testBucketReader()
	maxSync := reader.Context.Config.MaxSyncFileSize
	assert.Equal(t, constants.TopicConvertSync, reader.TopicFor(100))
	assert.Equal(t, constants.TopicConvertSync, reader.TopicFor(maxSync))
	assert.Equal(t, constants.TopicConvertBatch, reader.TopicFor(maxSync+1))
}

func TestCreateJob(t *testing.T) {
	reader := testBucketReader()
	uploadedAt := time.Date(2023, 6, 10, 14, 30, 0, 0, time.UTC)
	obj := minio.ObjectInfo{
		Key:          "acme/orders.csv",
		ETag:         "\"b54cb28a7c0110be\"",
		Size:         2048,
		ContentType:  constants.ContentTypeCSV,
		LastModified: uploadedAt,
	}
	job := reader.CreateJob(obj)
	require.NotNil(t, job)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "raw-uploads", job.Bucket)
	assert.Equal(t, "acme/orders.csv", job.Key)
	assert.Equal(t, "b54cb28a7c0110be", job.ETag)
	assert.Equal(t, int64(2048), job.Size)
	assert.Equal(t, constants.ContentTypeCSV, job.ContentType)
	assert.Equal(t, "acme", job.Source)
	assert.Equal(t, uploadedAt, job.UploadedAt)
	assert.False(t, job.CreatedAt.IsZero())
	assert.Equal(t, constants.TopicConvertSync, job.Topic)
	assert.Equal(t, constants.StageReceive, job.Stage)
	assert.Equal(t, constants.StatusPending, job.Status)
	assert.True(t, job.Retry)

	// Each call creates a distinct job.
	other := reader.CreateJob(obj)
	assert.NotEqual(t, job.ID, other.ID)
}
