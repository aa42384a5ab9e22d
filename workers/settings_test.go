package workers_test

import (
	"testing"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/workers"
	"github.com/stretchr/testify/assert"
)

func TestToJSON(t *testing.T) {
	settings := &workers.Settings{
		ChannelBufferSize: 20,
		MaxAttempts:       3,
		NSQChannel:        constants.TopicConvertSync + "_worker_chan",
		NSQTopic:          constants.TopicConvertSync,
		NumberOfWorkers:   2,
		RequeueTimeout:    (1 * time.Minute),
		SuccessNote:       "Finished converting file to Parquet",
	}
	assert.Equal(t, expectedJSON, settings.ToJSON())
}

var expectedJSON = `{"ChannelBufferSize":20,"MaxAttempts":3,"NSQChannel":"convert_sync_worker_chan","NSQTopic":"convert_sync","NumberOfWorkers":2,"RequeueTimeout":60000000000,"SuccessNote":"Finished converting file to Parquet"}`
