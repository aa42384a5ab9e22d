package workers_test

import (
	"os"
	"testing"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/util/logger"
	"github.com/datalift/ingest-services/workers"
	"github.com/stretchr/testify/assert"
)

func testWorkerBase() *workers.Base {
	context := &common.Context{
		Config: &common.Config{},
		Logger: logger.DiscardLogger(),
	}
	settings := &workers.Settings{
		ChannelBufferSize: 4,
		MaxAttempts:       3,
		NSQChannel:        constants.TopicConvertSync + "_worker_chan",
		NSQTopic:          constants.TopicConvertSync,
		NumberOfWorkers:   1,
		RequeueTimeout:    (1 * time.Minute),
	}
	return workers.NewBase(context, nil, settings)
}

func testJob() *service.ConversionJob {
	return &service.ConversionJob{
		ID:     "5aff5176-9e06-45f9-9a67-cb31f6a7b4e0",
		Bucket: "raw-uploads",
		Key:    "acme/orders.csv",
		Stage:  constants.StageReceive,
		Status: constants.StatusPending,
		Retry:  true,
	}
}

func TestOtherWorkerIsHandlingThis(t *testing.T) {
	base := testWorkerBase()
	job := testJob()

	// Unclaimed job: nobody is handling it.
	assert.False(t, base.OtherWorkerIsHandlingThis(job))

	// Claimed by this process.
	job.SetNodeAndPid()
	assert.False(t, base.OtherWorkerIsHandlingThis(job))

	// Claimed by another process.
	job.Node = "some-other-host"
	job.Pid = os.Getpid() + 1
	assert.True(t, base.OtherWorkerIsHandlingThis(job))
}

func TestImAlreadyProcessingThis(t *testing.T) {
	base := testWorkerBase()
	job := testJob()

	assert.False(t, base.ImAlreadyProcessingThis(job))

	base.AddToInProcessList(job.ID)
	assert.True(t, base.ImAlreadyProcessingThis(job))

	// When we're already on it, Node and Pid get reset to this worker.
	hostname, _ := os.Hostname()
	assert.Equal(t, hostname, job.Node)
	assert.Equal(t, os.Getpid(), job.Pid)

	base.RemoveFromInProcessList(job.ID)
	assert.False(t, base.ImAlreadyProcessingThis(job))
}

func TestShouldRetry(t *testing.T) {
	base := testWorkerBase()
	job := testJob()

	assert.True(t, base.ShouldRetry(job))

	job.SetNodeAndPid()
	job.Retry = false
	assert.False(t, base.ShouldRetry(job))

	// Rejecting the job also releases it.
	assert.Equal(t, "", job.Node)
	assert.Equal(t, 0, job.Pid)
}

type stubProcessor struct {
	job    *service.ConversionJob
	errors []*service.ProcessingError
}

func (p *stubProcessor) Run() (int, []*service.ProcessingError) {
	return 0, p.errors
}

func (p *stubProcessor) Job() *service.ConversionJob {
	return p.job
}

// Tasks route to the success, error, or fatal channel based on the
// worst error the processor reported.
func TestProcessItemRouting(t *testing.T) {
	base := testWorkerBase()
	go base.ProcessItem()

	makeTask := func(errors []*service.ProcessingError) *workers.Task {
		job := testJob()
		return &workers.Task{
			ConversionJob: job,
			WorkResult:    service.NewWorkResult(constants.TopicConvertSync),
			Processor:     &stubProcessor{job: job, errors: errors},
		}
	}

	base.ProcessChannel <- makeTask(nil)
	select {
	case <-base.SuccessChannel:
	case <-time.After(2 * time.Second):
		t.Fatal("clean task never reached SuccessChannel")
	}

	transient := service.NewProcessingError("id", "acme/orders.csv", "connection reset", false)
	base.ProcessChannel <- makeTask([]*service.ProcessingError{transient})
	select {
	case task := <-base.ErrorChannel:
		assert.False(t, task.WorkResult.HasFatalErrors())
		assert.True(t, task.WorkResult.HasErrors())
	case <-time.After(2 * time.Second):
		t.Fatal("transient-error task never reached ErrorChannel")
	}

	fatal := service.NewProcessingError("id", "acme/orders.csv", "malformed CSV row", true)
	base.ProcessChannel <- makeTask([]*service.ProcessingError{transient, fatal})
	select {
	case task := <-base.FatalErrorChannel:
		assert.True(t, task.WorkResult.HasFatalErrors())
	case <-time.After(2 * time.Second):
		t.Fatal("fatal-error task never reached FatalErrorChannel")
	}
}

func TestShouldSkipThis(t *testing.T) {
	base := testWorkerBase()

	job := testJob()
	assert.False(t, base.ShouldSkipThis(job))

	completed := testJob()
	completed.Status = constants.StatusSucceeded
	assert.True(t, base.ShouldSkipThis(completed))

	noRetry := testJob()
	noRetry.Retry = false
	assert.True(t, base.ShouldSkipThis(noRetry))

	claimed := testJob()
	claimed.Node = "some-other-host"
	claimed.Pid = os.Getpid() + 1
	assert.True(t, base.ShouldSkipThis(claimed))

	inProcess := testJob()
	base.AddToInProcessList(inProcess.ID)
	assert.True(t, base.ShouldSkipThis(inProcess))
}
