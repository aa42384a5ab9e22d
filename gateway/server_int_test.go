//go:build integration
// +build integration

package gateway

import (
	"net/http"
	"testing"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests require a local Redis server on the default port.

func intTestServer(t *testing.T) *Server {
	context := testContext(t)
	context.RedisClient = network.NewRedisClient("localhost:6379", "", 0)
	return NewServer(context)
}

func TestGetJobUnknownID(t *testing.T) {
	server := intTestServer(t)
	recorder := get(server, "/jobs/00000000-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "no job with id")
}

func TestGetJobKnownID(t *testing.T) {
	server := intTestServer(t)
	job := &service.ConversionJob{
		ID:     "gateway-test-job-1",
		Bucket: "raw-uploads",
		Key:    "acme/orders.csv",
		ETag:   "0a1b2c3d",
		Status: constants.StatusPending,
		Retry:  true,
	}
	require.Nil(t, server.Context.RedisClient.JobSave(job))
	defer server.Context.RedisClient.JobDelete(job.ID)

	recorder := get(server, "/jobs/"+job.ID)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "acme/orders.csv")
}
