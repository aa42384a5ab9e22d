package service_test

import (
	"os"
	"testing"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob() *service.ConversionJob {
	return &service.ConversionJob{
		ID:          "f8b6f250-1db5-4f44-b58a-d4c7e5a0f5f2",
		Bucket:      "raw-uploads",
		Key:         "acme/orders.csv",
		ETag:        "0a1b2c3d4e5f",
		Size:        2048,
		ContentType: constants.ContentTypeCSV,
		Source:      "acme",
		UploadedAt:  time.Date(2023, 6, 10, 12, 0, 0, 0, time.UTC),
		CreatedAt:   time.Now().UTC(),
		Topic:       constants.TopicConvertSync,
		Stage:       constants.StageReceive,
		Status:      constants.StatusPending,
		Retry:       true,
	}
}

func TestConversionJobJSON(t *testing.T) {
	job := sampleJob()
	jsonData, err := job.ToJSON()
	require.Nil(t, err)

	restored, err := service.ConversionJobFromJSON(jsonData)
	require.Nil(t, err)
	assert.Equal(t, job.ID, restored.ID)
	assert.Equal(t, job.Key, restored.Key)
	assert.Equal(t, job.ETag, restored.ETag)
	assert.Equal(t, job.Topic, restored.Topic)
	assert.True(t, restored.Retry)
}

func TestConversionJobProcessingHasCompleted(t *testing.T) {
	job := sampleJob()
	for _, status := range []string{constants.StatusPending, constants.StatusStarted} {
		job.Status = status
		assert.False(t, job.ProcessingHasCompleted(), status)
	}
	for _, status := range constants.CompletedStatusValues {
		job.Status = status
		assert.True(t, job.ProcessingHasCompleted(), status)
	}
}

func TestConversionJobMarkInProgress(t *testing.T) {
	hostname, _ := os.Hostname()
	job := sampleJob()
	job.MarkInProgress(constants.StageConvert, constants.StatusStarted, "converting")
	assert.Equal(t, hostname, job.Node)
	assert.Equal(t, os.Getpid(), job.Pid)
	assert.Equal(t, constants.StageConvert, job.Stage)
	assert.Equal(t, constants.StatusStarted, job.Status)
	assert.Equal(t, "converting", job.Note)

	job.MarkNoLongerInProgress(constants.StageRecord, constants.StatusSucceeded, "done")
	assert.Empty(t, job.Node)
	assert.Equal(t, 0, job.Pid)
	assert.Equal(t, constants.StatusSucceeded, job.Status)
}
