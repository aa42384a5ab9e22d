package service

import (
	"encoding/json"
	"os"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/util"
)

// ConversionJob describes one raw object waiting to be converted, or
// in the middle of conversion. The bucket reader creates jobs when it
// finds new objects in the raw bucket; workers load them from Redis
// by the ID carried in the NSQ message.
type ConversionJob struct {
	ID          string    `json:"id"`
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	ETag        string    `json:"etag"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Source      string    `json:"source"`
	UploadedAt  time.Time `json:"uploaded_at"`
	CreatedAt   time.Time `json:"created_at"`
	QueuedAt    time.Time `json:"queued_at,omitempty"`
	Topic       string    `json:"topic"`
	Stage       string    `json:"stage"`
	Status      string    `json:"status"`
	Note        string    `json:"note"`
	Retry       bool      `json:"retry"`
	Node        string    `json:"node"`
	Pid         int       `json:"pid"`
}

// ConversionJobFromJSON converts a JSON representation of a
// ConversionJob to a ConversionJob object.
func ConversionJobFromJSON(jsonData string) (*ConversionJob, error) {
	job := &ConversionJob{}
	err := json.Unmarshal([]byte(jsonData), job)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ToJSON converts a ConversionJob to its JSON representation.
func (job *ConversionJob) ToJSON() (string, error) {
	bytes, err := json.Marshal(job)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// ProcessingHasCompleted returns true if this job is in one of the
// final states of "Succeeded", "Failed", or "Cancelled." Those states
// indicate that no further processing should occur.
func (job *ConversionJob) ProcessingHasCompleted() bool {
	return util.StringListContains(constants.CompletedStatusValues, job.Status)
}

// SetNodeAndPid sets the Node and Pid properties of this job to the
// hostname and pid of the current worker process.
func (job *ConversionJob) SetNodeAndPid() {
	hostname, _ := os.Hostname()
	job.Node = hostname
	job.Pid = os.Getpid()
}

// ClearNodeAndPid sets this job's Node to an empty string and its
// Pid to zero, so other workers can claim it.
func (job *ConversionJob) ClearNodeAndPid() {
	job.Node = ""
	job.Pid = 0
}

// MarkInProgress sets this job's Node and Pid, as well as the Stage,
// Status, and Note.
func (job *ConversionJob) MarkInProgress(stage, status, note string) {
	job.SetNodeAndPid()
	job.Stage = stage
	job.Status = status
	job.Note = note
}

// MarkNoLongerInProgress clears this job's Node and Pid, and sets the
// Stage, Status, and Note. The caller should also set Retry if
// necessary.
func (job *ConversionJob) MarkNoLongerInProgress(stage, status, note string) {
	job.ClearNodeAndPid()
	job.Stage = stage
	job.Status = status
	job.Note = note
}
