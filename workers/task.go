package workers

import (
	"time"

	"github.com/datalift/ingest-services/conversion"
	"github.com/datalift/ingest-services/models/service"
	"github.com/nsqio/go-nsq"
)

// Task encapsulates everything that a worker needs to pass from one
// channel to the next while processing a ConversionJob.
type Task struct {

	// NSQMessage is the NSQ message the worker is processing. Its
	// body is the ConversionJob ID.
	NSQMessage *nsq.Message

	// Processor does the actual conversion work for this worker's
	// tier: a Converter for small files, a BatchConverter for large
	// ones and prefixes.
	Processor conversion.Runnable

	// WorkResult describes the result of this worker's work.
	WorkResult *service.WorkResult

	// ConversionJob is the job loaded from Redis that describes the
	// raw object the worker is converting.
	ConversionJob *service.ConversionJob

	nsqStopChannel chan bool

	// For testing
	nsqStartCalled bool

	// For testing
	tickerStopped bool
}

// NSQStart creates a timer that touches the NSQ message every two
// minutes while the job is in process. Converting a multi-gigabyte
// raw object cannot pause to touch the NSQ message before it times
// out, so the ticker does it.
func (task *Task) NSQStart() {
	task.NSQMessage.DisableAutoResponse()
	interval := time.Duration(2) * time.Minute
	ticker := time.NewTicker(interval)
	stopChannel := make(chan bool)
	go func() {
		for {
			select {
			case <-ticker.C:
				task.NSQMessage.Touch()
			case <-stopChannel:
				ticker.Stop()
				task.tickerStopped = true
				return
			}
		}
	}()
	task.nsqStartCalled = true
	task.nsqStopChannel = stopChannel
}

// NSQRequeue requeues the message with the specified duration
// and stops sending touches.
func (task *Task) NSQRequeue(delay time.Duration) {
	task.nsqStopChannel <- true
	task.NSQMessage.Requeue(delay)
}

// NSQFinish finishes the message and stops sending touches.
func (task *Task) NSQFinish() {
	task.nsqStopChannel <- true
	task.NSQMessage.Finish()
}

// StartCalled returns true if NSQStart() has been called on this object.
// This method exists for testing purposes.
func (task *Task) StartCalled() bool {
	return task.nsqStartCalled
}

// TickerStopped returns true if either NSQFinish() or NSQRequeue()
// has been called. This method exists for testing purposes.
func (task *Task) TickerStopped() bool {
	return task.tickerStopped
}
