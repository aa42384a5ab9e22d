package workers

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/conversion"
	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
	"github.com/nsqio/go-nsq"
)

// ServiceWorker defines the primary interface for conversion workers.
type ServiceWorker interface {
	RegisterAsNsqConsumer() error
	HandleMessage(*nsq.Message) error
	ProcessSuccessChannel()
	ProcessErrorChannel()
	ProcessFatalErrorChannel()
	GetJob(*nsq.Message) (*service.ConversionJob, *service.ProcessingError)
	Error(string, string, error, bool) *service.ProcessingError
	GetWorkResult(string) *service.WorkResult
	SaveWorkResult(string, *service.WorkResult) error
	SaveJob(*service.ConversionJob) error
	OtherWorkerIsHandlingThis(*service.ConversionJob) bool
	ImAlreadyProcessingThis(*service.ConversionJob) bool
	ShouldRetry(*service.ConversionJob) bool
	AddToInProcessList(string)
	RemoveFromInProcessList(string)
	MarkAsStarted(*Task)
	FinishItem(*Task)
}

// SigTermState contains info about whether the current worker
// received SIGTERM (or SIGINT), and if so, what action it took
// in response to the signal.
type SigTermState struct {
	// Received indicates whether this worker received SIGTERM
	// or SIGINT.
	Received bool
	// Completed indicates whether this worker completed all of
	// its SIGTERM cleanup tasks.
	Completed bool
	// JobsInProcess is the number of jobs this worker was
	// working on when SIGTERM was received.
	JobsInProcess int
	// JobsReleased is the number of jobs this worker released
	// in Redis by clearing the job's Node and Pid settings.
	JobsReleased int
	// FailedReleases is the number of jobs this worker tried
	// unsuccessfully to release.
	FailedReleases int
}

// Base contains the fundamental structures common to all workers.
type Base struct {

	// Context contains info about the context in which the worker is
	// operating, including connections to NSQ, Redis, and S3.
	Context *common.Context

	// JobsInProcess keeps track of the ConversionJob ids the worker is
	// currently processing. We need to do this because NSQ does not
	// dedupe messages, so the worker must.
	JobsInProcess *service.RecentSet

	// ProcessChannel is where the work actually happens: streaming
	// the raw object, re-encoding it, and uploading the result.
	ProcessChannel chan *Task

	// SuccessChannel processes tasks that have gone through the
	// ProcessChannel with no errors.
	SuccessChannel chan *Task

	// ErrorChannel processes tasks that have gone through the
	// ProcessChannel with one or more non-fatal errors. These tasks
	// typically should be retried.
	ErrorChannel chan *Task

	// FatalErrorChannel processes tasks that have gone through the
	// ProcessChannel with one or more fatal errors. These tasks
	// should not be retried.
	FatalErrorChannel chan *Task

	// KillChannel handles SIGTERM and SIGINT.
	KillChannel chan os.Signal

	// Settings contains information on what to do in post-processing
	// in the SuccessChannel, ErrorChannel, and FatalErrorChannel.
	Settings *Settings

	// NSQConsumer implements HandleMessage to receive messages from NSQ.
	NSQConsumer *nsq.Consumer

	// processorConstructor returns the conversion.Runnable that will
	// handle the processing for one job.
	processorConstructor conversion.RunnableConstructor

	// sigTermState contains info about whether the current worker received
	// SIGTERM or SIGINT, and what cleanup work it did after receiving the
	// signal.
	sigTermState SigTermState
}

// NewBase creates the channels and dedupe list every worker needs.
// The worker wrappers spawn the channel consumers and register with
// NSQ after this returns.
func NewBase(context *common.Context, constructor conversion.RunnableConstructor, settings *Settings) *Base {
	return &Base{
		Context:              context,
		JobsInProcess:        service.NewRecentSet(settings.ChannelBufferSize * 2),
		ProcessChannel:       make(chan *Task, settings.ChannelBufferSize),
		SuccessChannel:       make(chan *Task, settings.ChannelBufferSize),
		ErrorChannel:         make(chan *Task, settings.ChannelBufferSize),
		FatalErrorChannel:    make(chan *Task, settings.ChannelBufferSize),
		KillChannel:          make(chan os.Signal, 1),
		Settings:             settings,
		processorConstructor: constructor,
	}
}

// RegisterAsNsqConsumer registers this worker as an NSQ consumer on
// Settings.NSQTopic and Settings.NSQChannel. Note that as soon as you
// call this, your worker will start handling messages if any are
// available.
func (b *Base) RegisterAsNsqConsumer() error {
	config := nsq.NewConfig()
	config.Set("heartbeat_interval", "10s")
	config.Set("max_in_flight", b.Settings.ChannelBufferSize)
	consumer, err := nsq.NewConsumer(b.Settings.NSQTopic, b.Settings.NSQChannel, config)
	if err != nil {
		return err
	}
	b.NSQConsumer = consumer
	b.NSQConsumer.AddHandler(b)
	b.NSQConsumer.ConnectToNSQLookupd(b.Context.Config.NsqLookupd)
	b.Context.Logger.Info("Registered as NSQ consumer on topic ", b.Settings.NSQTopic)
	return nil
}

// HandleMessage checks whether we should process this message at all.
// If so, it packages up a Task with the job, its WorkResult, and the
// right processor, and puts the Task in the ProcessChannel.
func (b *Base) HandleMessage(message *nsq.Message) error {
	// Get the ConversionJob from Redis. A transient Redis error
	// returns non-nil so NSQ will redeliver the message.
	job, procErr := b.GetJob(message)
	if procErr != nil {
		b.Context.Logger.Error(procErr.Error())
		return fmt.Errorf(procErr.Error())
	}

	// If there's any reason to skip this, return nil to tell
	// NSQ it's done. We haven't yet marked this job as started,
	// so do not save it back to Redis if we're going to skip it.
	if b.ShouldSkipThis(job) {
		b.Context.Logger.Infof("Skipping job %s (%s)", job.ID, job.Key)
		return nil
	}

	task := &Task{
		NSQMessage:    message,
		WorkResult:    b.GetWorkResult(job.ID),
		ConversionJob: job,
		Processor:     b.processorConstructor(b.Context, job),
	}

	// Tell Redis and NSQ we're starting work on this.
	b.MarkAsStarted(task)

	// Make a note that we're processing this.
	b.AddToInProcessList(job.ID)

	b.ProcessChannel <- task

	// Return nil (no error) so NSQ knows we're working on this.
	return nil
}

// ProcessItem pulls tasks from the ProcessChannel, runs the processor,
// and routes each task to the SuccessChannel, the ErrorChannel, or the
// FatalErrorChannel, depending on the outcome. It also listens for
// kill signals, since this is the only long-running loop guaranteed
// to exist in every worker.
func (b *Base) ProcessItem() {
	for {
		select {
		case signal := <-b.KillChannel:
			b.doSigTermCleanup(signal)
		case task := <-b.ProcessChannel:
			b.processItem(task)
		}
	}
}

func (b *Base) processItem(task *Task) {
	b.Context.Logger.Infof("Job %s (%s) is in ProcessChannel", task.ConversionJob.ID, task.ConversionJob.Key)
	count, errors := task.Processor.Run()
	for _, procErr := range errors {
		task.WorkResult.AddError(procErr)
	}

	b.Context.Logger.Infof("Job %s: converted %d rows", task.ConversionJob.ID, count)

	if task.WorkResult.HasFatalErrors() {
		b.FatalErrorChannel <- task
	} else if task.WorkResult.HasErrors() {
		b.ErrorChannel <- task
	} else {
		b.SuccessChannel <- task
	}
}

// ProcessSuccessChannel closes out jobs whose conversion succeeded.
func (b *Base) ProcessSuccessChannel() {
	for task := range b.SuccessChannel {
		b.Context.Logger.Infof("Job %s (%s) is in SuccessChannel", task.ConversionJob.ID, task.ConversionJob.Key)
		task.ConversionJob.MarkNoLongerInProgress(
			constants.StageRecord,
			constants.StatusSucceeded,
			b.Settings.SuccessNote,
		)
		b.FinishItem(task)
		task.NSQFinish()
	}
}

// ProcessErrorChannel handles jobs that failed with non-fatal errors.
// These are requeued for another attempt unless the attempt count has
// reached Settings.MaxAttempts.
func (b *Base) ProcessErrorChannel() {
	for task := range b.ErrorChannel {
		shouldRequeue := true
		b.Context.Logger.Warningf("Job %s (%s) is in ErrorChannel", task.ConversionJob.ID, task.ConversionJob.Key)

		attemptNumber := task.WorkResult.Attempt
		maxAttempts := b.Settings.MaxAttempts
		if attemptNumber >= maxAttempts {
			task.ConversionJob.MarkNoLongerInProgress(
				task.ConversionJob.Stage,
				constants.StatusFailed,
				fmt.Sprintf("Processing failed after max attempts (%d): %s",
					maxAttempts, task.WorkResult.FatalErrorMessage()),
			)
			task.ConversionJob.Retry = false
			shouldRequeue = false
		} else {
			task.ConversionJob.MarkNoLongerInProgress(
				task.ConversionJob.Stage,
				constants.StatusPending,
				fmt.Sprintf("Will requeue after transient errors (attempt %d of %d)",
					attemptNumber, maxAttempts),
			)
		}

		b.FinishItem(task)
		if shouldRequeue {
			task.NSQRequeue(b.Settings.RequeueTimeout)
		} else {
			task.NSQFinish()
		}
	}
}

// ProcessFatalErrorChannel handles jobs whose raw objects can never
// convert: a broken header, an unparsable JSON line, an unknown format.
// These are never requeued.
func (b *Base) ProcessFatalErrorChannel() {
	for task := range b.FatalErrorChannel {
		b.Context.Logger.Errorf("Job %s (%s) is in FatalErrorChannel", task.ConversionJob.ID, task.ConversionJob.Key)
		task.ConversionJob.MarkNoLongerInProgress(
			task.ConversionJob.Stage,
			constants.StatusFailed,
			task.WorkResult.FatalErrorMessage(),
		)
		task.ConversionJob.Retry = false
		b.FinishItem(task)
		task.NSQFinish()
	}
}

// GetJob returns the ConversionJob whose ID is in the message body.
func (b *Base) GetJob(message *nsq.Message) (*service.ConversionJob, *service.ProcessingError) {
	jobID := strings.TrimSpace(string(message.Body))
	if jobID == "" {
		fullErr := fmt.Errorf("NSQ message body contains no job ID")
		return nil, b.Error("", jobID, fullErr, true)
	}
	job, err := b.Context.RedisClient.JobGet(jobID)
	if err != nil {
		fullErr := fmt.Errorf("Error getting job %s from Redis: %v", jobID, err)
		return nil, b.Error(jobID, jobID, fullErr, false)
	}
	return job, nil
}

// Error creates a new ProcessingError.
func (b *Base) Error(jobID, identifier string, err error, isFatal bool) *service.ProcessingError {
	return service.NewProcessingError(
		jobID,
		identifier,
		err.Error(),
		isFatal,
	)
}

// ShouldSkipThis returns true if the worker should ignore the message
// that delivered this job.
func (b *Base) ShouldSkipThis(job *service.ConversionJob) bool {
	if b.OtherWorkerIsHandlingThis(job) {
		return true
	}
	if b.ImAlreadyProcessingThis(job) {
		return true
	}
	if !b.ShouldRetry(job) {
		return true
	}
	if job.ProcessingHasCompleted() {
		b.Context.Logger.Infof("Skipping job %s because status is %s", job.ID, job.Status)
		return true
	}
	return false
}

// GetWorkResult returns a WorkResult object for this job. If one
// already exists in Redis, it returns that. If not, it creates a new one.
func (b *Base) GetWorkResult(jobID string) *service.WorkResult {
	workResult, err := b.Context.RedisClient.WorkResultGet(jobID, b.Settings.NSQTopic)
	if err != nil {
		b.Context.Logger.Infof("No WorkResult in Redis for job %s. No problem. Creating a new one.", jobID)
		workResult = service.NewWorkResult(b.Settings.NSQTopic)
	}
	return workResult
}

// SaveWorkResult saves a WorkResult to Redis and logs an error if any occurs.
// Will try three times, in case Redis is busy.
func (b *Base) SaveWorkResult(jobID string, result *service.WorkResult) error {
	var err error
	for i := 0; i < 3; i++ {
		err = b.Context.RedisClient.WorkResultSave(jobID, result)
		if err == nil {
			break
		}
		if i == 2 {
			b.Context.Logger.Errorf("Error saving WorkResult for job %s: %v", jobID, err)
			return err
		}
		time.Sleep(time.Duration(250) * time.Millisecond)
	}
	return nil
}

// SaveJob saves a ConversionJob back to Redis. Will try three times,
// in case Redis is busy.
func (b *Base) SaveJob(job *service.ConversionJob) error {
	var err error
	for i := 0; i < 3; i++ {
		err = b.Context.RedisClient.JobSave(job)
		if err == nil {
			break
		}
		if i == 2 {
			b.Context.Logger.Errorf("Error saving job %s to Redis: %v", job.ID, err)
			return err
		}
		time.Sleep(time.Duration(250) * time.Millisecond)
	}
	return nil
}

// OtherWorkerIsHandlingThis returns true if some other worker is already
// processing this job. This happens with large conversions that take
// longer than NSQ's maximum allowed timeout.
func (b *Base) OtherWorkerIsHandlingThis(job *service.ConversionJob) bool {
	if job.Node == "" && job.Pid == 0 {
		return false
	}
	hostname, _ := os.Hostname()
	if job.Node != hostname || job.Pid != os.Getpid() {
		b.Context.Logger.Infof("Skipping job %s because it's being processed by host %s, pid %d and this worker is host %s, pid %d", job.ID, job.Node, job.Pid, hostname, os.Getpid())
		return true
	}
	return false
}

// ImAlreadyProcessingThis returns true and logs a message if this job
// is already being processed by this worker. This happens with large
// files when NSQ thinks the message has timed out and tries to
// reassign it to a new worker.
func (b *Base) ImAlreadyProcessingThis(job *service.ConversionJob) bool {
	if b.JobsInProcess.Contains(job.ID) {
		// Node and pid may be empty if this was manually requeued. Reset them.
		job.SetNodeAndPid()
		b.Context.Logger.Infof("Skipping job %s because this worker is already working on it host %s, pid %d", job.ID, job.Node, job.Pid)
		return true
	}
	return false
}

// ShouldRetry marks a job as no longer in progress and logs a message
// to that effect if the job's Retry flag is false. It returns the
// value of job.Retry.
func (b *Base) ShouldRetry(job *service.ConversionJob) bool {
	if !job.Retry {
		message := fmt.Sprintf("Rejecting job %s because retry = false", job.ID)
		job.MarkNoLongerInProgress(
			job.Stage,
			job.Status,
			message,
		)
		b.Context.Logger.Info(message)
	}
	return job.Retry
}

// AddToInProcessList adds jobID to this worker's JobsInProcess list.
func (b *Base) AddToInProcessList(jobID string) {
	b.JobsInProcess.Add(jobID)
}

// RemoveFromInProcessList removes jobID from this worker's
// JobsInProcess list.
func (b *Base) RemoveFromInProcessList(jobID string) {
	b.JobsInProcess.Del(jobID)
}

// MarkAsStarted tells Redis and NSQ that work on this job has started.
func (b *Base) MarkAsStarted(task *Task) {
	b.Context.Logger.Infof("Starting WorkResult for job %s (%s)", task.ConversionJob.ID, task.ConversionJob.Key)
	task.WorkResult.Reset()
	task.WorkResult.Attempt++
	task.WorkResult.Start()
	task.WorkResult.Host, _ = os.Hostname()
	task.WorkResult.Pid = os.Getpid()
	b.SaveWorkResult(task.ConversionJob.ID, task.WorkResult)

	task.ConversionJob.MarkInProgress(
		constants.StageConvert,
		constants.StatusStarted,
		fmt.Sprintf("Conversion started on topic %s", b.Settings.NSQTopic),
	)
	b.SaveJob(task.ConversionJob)

	// NSQ. Note that this disables NSQ autoresponse, and pings
	// NSQ every few minutes to say we're still working on the item.
	task.NSQStart()
}

// FinishItem releases the job, finishes and saves the WorkResult,
// and removes this job from the JobsInProcess list. The caller sets
// the job's final stage and status before calling this.
func (b *Base) FinishItem(task *Task) {
	b.Context.Logger.Infof("Finishing job %s (%s)", task.ConversionJob.ID, task.ConversionJob.Key)
	task.ConversionJob.ClearNodeAndPid()
	b.SaveJob(task.ConversionJob)
	task.WorkResult.Finish()
	b.SaveWorkResult(task.ConversionJob.ID, task.WorkResult)
	b.RemoveFromInProcessList(task.ConversionJob.ID)
}

// doSigTermCleanup handles SIGTERM and SIGINT. Container schedulers
// issue SIGTERM before SIGKILL, so we have time to clean up. The
// channels that do housekeeping finish in a second or two on their
// own; the problem is the ProcessChannel, which may be minutes into
// a large conversion when SIGKILL arrives. Redis has enough state for
// the next worker to redo the dead task, but two things must happen
// first:
//
// 1. nsqd must know immediately that this worker is gone, so it
// requeues our in-flight messages instead of waiting out their long
// timeouts.
//
// 2. Our in-process jobs in Redis must have their Node and Pid
// cleared. As long as a job carries a non-empty Node and Pid, other
// workers think someone owns it and won't touch it.
func (b *Base) doSigTermCleanup(signal os.Signal) {
	if signal != syscall.SIGINT && signal != syscall.SIGTERM {
		return
	}
	b.sigTermState.Received = true
	b.Context.Logger.Warning("Worker received SIGTERM. Starting graceful shutdown.")

	if b.NSQConsumer != nil {
		// Stop the consumer. nsqd will pick this up and requeue
		// whatever messages we were working on, so that other
		// workers can pick them up.
		b.Context.Logger.Warning("SIGTERM step 1: Disconnect from NSQ")
		b.NSQConsumer.ChangeMaxInFlight(0)
		b.NSQConsumer.Stop()
		b.Context.Logger.Warning("Worker disconnected from nsqd due to SIGTERM.")
	} else {
		b.Context.Logger.Warning("SIGTERM step 1: No need to stop NSQ consumer because there isn't one.")
	}

	b.Context.Logger.Warning("SIGTERM step 2: Release jobs")
	jobsInProcess := b.JobsInProcess.Items()
	b.sigTermState.JobsInProcess = len(jobsInProcess)
	for _, jobID := range jobsInProcess {
		releaseErr := b.sigTermReleaseJob(jobID)
		if releaseErr != nil {
			b.sigTermState.FailedReleases += 1
			b.Context.Logger.Errorf("Could not release job %s after SIGTERM: %v", jobID, releaseErr)
		} else {
			b.sigTermState.JobsReleased += 1
			b.Context.Logger.Warningf("Released job %s due to SIGTERM", jobID)
		}
	}
	b.sigTermState.Completed = true
	b.Context.Logger.Warning("SIGTERM: Done releasing jobs")
	b.Context.Logger.Warning("SIGTERM: Graceful shutdown steps complete. Waiting for SIGKILL.")
}

// sigTermReleaseJob clears the Node and Pid, and sets the status to
// Pending on the specified job. This is used only when our worker
// gets a SIGTERM.
func (b *Base) sigTermReleaseJob(jobID string) error {
	job, err := b.Context.RedisClient.JobGet(jobID)
	if err != nil {
		return err
	}
	if job.Node == "" {
		// We haven't claimed this job yet,
		// so there's no need to release it.
		return nil
	}
	hostname, _ := os.Hostname()
	job.ClearNodeAndPid()
	job.Status = constants.StatusPending
	if !strings.Contains(job.Note, hostname) {
		job.Note = fmt.Sprintf("%s - Waiting for new worker because container %s was killed", job.Note, hostname)
	}
	return b.SaveJob(job)
}

// GetSigTermState returns this worker's SigTermState object, which
// contains info about whether this worker received SIGTERM or SIGINT
// and what action it took.
func (b *Base) GetSigTermState() SigTermState {
	return b.sigTermState
}
