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

// BatchConverter converts large raw objects and whole prefixes,
// splitting output into multiple Parquet parts. Jobs on this topic
// can run for hours, so the requeue timeout is longer and the default
// worker count should stay low.
type BatchConverter struct {
	*Base
}

// NewBatchConverter creates a new BatchConverter worker. Calling this
// starts the worker: it connects to NSQ and begins handling messages
// immediately.
func NewBatchConverter(bufSize, numWorkers, maxAttempts int) *BatchConverter {
	_context := common.NewContext()
	settings := &Settings{
		ChannelBufferSize: bufSize,
		MaxAttempts:       maxAttempts,
		NSQChannel:        constants.TopicConvertBatch + "_worker_chan",
		NSQTopic:          constants.TopicConvertBatch,
		NumberOfWorkers:   numWorkers,
		RequeueTimeout:    (5 * time.Minute),
		SuccessNote:       "Finished batch conversion to Parquet",
	}
	worker := &BatchConverter{
		Base: NewBase(_context, createBatchConverter, settings),
	}

	worker.Context.Logger.Info("Batch converter started with settings: ", settings.ToJSON())

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

func createBatchConverter(context *common.Context, job *service.ConversionJob) conversion.Runnable {
	return conversion.NewBatchConverter(context, job)
}
