package service

import (
	"fmt"
	"runtime"
)

type ProcessingError struct {
	Identifier string `json:"identifier"`
	IsFatal    bool   `json:"is_fatal"`
	JobID      string `json:"job_id"`
	Message    string `json:"message"`
	Source     string `json:"source"`
}

// NewProcessingError returns a new ProcessingError. Param jobID is the
// ID of the ConversionJob being processed when the error occurred.
// Param identifier is usually the raw object key. Fatal errors are
// those which will prevent a worker from succeeding when it retries
// the job: malformed CSV, an unparsable JSON line, a missing header.
// Non-fatal errors are transient, like a failed S3 read or a Redis
// timeout, and are worth retrying.
func NewProcessingError(jobID, identifier, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(1)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		Identifier: identifier,
		IsFatal:    isFatal,
		JobID:      jobID,
		Message:    message,
		Source:     source,
	}
}

func (e *ProcessingError) Error() string {
	severity := "non-fatal"
	if e.IsFatal {
		severity = "fatal"
	}
	return fmt.Sprintf("(job %s) (message: %s) (severity: %s) "+
		"(identifier: %s) (source: %s)", e.JobID, e.Message,
		severity, e.Identifier, e.Source)
}
