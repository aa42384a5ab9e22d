//go:build integration
// +build integration

package network_test

import (
	"errors"
	"testing"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests require a local Redis server on the default port.

func intTestClient() *network.RedisClient {
	return network.NewRedisClient("localhost:6379", "", 0)
}

func TestRedisPing(t *testing.T) {
	client := intTestClient()
	response, err := client.Ping()
	require.Nil(t, err)
	assert.Equal(t, "PONG", response)
}

func TestRedisJobSaveGetDelete(t *testing.T) {
	client := intTestClient()
	job := &service.ConversionJob{
		ID:     "test-job-1",
		Bucket: "raw-uploads",
		Key:    "acme/orders.csv",
		ETag:   "0a1b2c3d",
		Status: constants.StatusPending,
		Retry:  true,
	}
	require.Nil(t, client.JobSave(job))

	restored, err := client.JobGet(job.ID)
	require.Nil(t, err)
	assert.Equal(t, job.Key, restored.Key)

	require.Nil(t, client.JobDelete(job.ID))
	_, err = client.JobGet(job.ID)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, network.ErrNotFound))
}

func TestRedisJobGetUnknownID(t *testing.T) {
	client := intTestClient()
	_, err := client.JobGet("no-such-job")
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, network.ErrNotFound))
}

func TestRedisRecordSaveGet(t *testing.T) {
	client := intTestClient()
	defer client.JobDelete("test-job-2")

	record := service.NewConversionRecord("raw-uploads", "acme/orders.csv", "0a1b2c3d")
	record.RowCount = 10
	require.Nil(t, client.RecordSave("test-job-2", record))

	restored, err := client.RecordGet("test-job-2")
	require.Nil(t, err)
	assert.Equal(t, int64(10), restored.RowCount)
}

func TestRedisWorkResultSaveGet(t *testing.T) {
	client := intTestClient()
	defer client.JobDelete("test-job-3")

	result := service.NewWorkResult(constants.TopicConvertSync)
	result.Start()
	result.Finish()
	require.Nil(t, client.WorkResultSave("test-job-3", result))

	restored, err := client.WorkResultGet("test-job-3", constants.TopicConvertSync)
	require.Nil(t, err)
	assert.True(t, restored.Finished())
	assert.True(t, restored.Succeeded())
}

func TestRedisSeenIndex(t *testing.T) {
	client := intTestClient()

	jobID, err := client.SeenIndexGet("raw-uploads", "new.csv", time.Now().String())
	require.Nil(t, err)
	assert.Empty(t, jobID)

	require.Nil(t, client.SeenIndexSet("raw-uploads", "acme/orders.csv", "0a1b2c3d", "test-job-4"))
	jobID, err = client.SeenIndexGet("raw-uploads", "acme/orders.csv", "0a1b2c3d")
	require.Nil(t, err)
	assert.Equal(t, "test-job-4", jobID)
}
