package workers

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/conversion"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
)

// SyncConverter converts small raw objects, one Parquet file per job.
// The bucket reader routes everything at or below MaxSyncFileSize to
// this worker's topic.
type SyncConverter struct {
	*Base
}

// NewSyncConverter creates a new SyncConverter worker. Calling this
// starts the worker: it connects to NSQ and begins handling messages
// immediately.
func NewSyncConverter(bufSize, numWorkers, maxAttempts int) *SyncConverter {
	_context := common.NewContext()
	settings := &Settings{
		ChannelBufferSize: bufSize,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.TopicConvertSync + "_worker_chan",
		NSQTopic:          constants.TopicConvertSync,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    (1 * time.Minute),
		SuccessNote:       "Finished converting file to Parquet",
	}
	worker := &SyncConverter{
		Base: NewBase(_context, createConverter, settings),
	}

	worker.Context.Logger.Info("Sync converter started with settings: ", settings.ToJSON())

	signal.Notify(worker.KillChannel, syscall.SIGINT, syscall.SIGTERM)

	for i := 0; i < settings.NumberOfWorkers; i++ {
		worker.Context.Logger.Infof("Starting worker #%d", i+1)
		go worker.ProcessItem()
	}
	go worker.ProcessErrorChannel()
	go worker.ProcessFatalErrorChannel()
	go worker.ProcessSuccessChannel()

	err := worker.RegisterAsNsqConsumer()
	if err != nil {
		panic(fmt.Sprintf("Cannot register NSQ consumer: %v", err))
	}
	return worker
}

func createConverter(context *common.Context, job *service.ConversionJob) conversion.Runnable {
	return conversion.NewConverter(context, job)
}
