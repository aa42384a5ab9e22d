package constants

const (
	ContentTypeCSV     = "text/csv"
	ContentTypeJSON    = "application/json"
	ContentTypeNDJSON  = "application/x-ndjson"
	ContentTypeParquet = "application/vnd.apache.parquet"

	FormatCSV     = "csv"
	FormatNDJSON  = "ndjson"
	FormatUnknown = "unknown"

	S3ClientAWS   = "AWS"
	S3ClientLocal = "Local"

	// SourceDefault is the partition source for raw keys that have
	// no folder prefix.
	SourceDefault = "default"

	SystemUser = "system@datalift.io"
)

// NSQ topics. The bucket reader routes each ConversionJob to one of
// these based on the size of the raw object.
const (
	TopicConvertSync  = "convert_sync"
	TopicConvertBatch = "convert_batch"
)

// Stages a ConversionJob passes through.
const (
	StageReceive = "Receive"
	StageConvert = "Convert"
	StageRecord  = "Record"
)

// Statuses for ConversionJobs and WorkResults.
const (
	StatusPending   = "Pending"
	StatusStarted   = "Started"
	StatusSucceeded = "Succeeded"
	StatusFailed    = "Failed"
	StatusCancelled = "Cancelled"
)

// CompletedStatusValues are the statuses in which no further
// processing should occur on a ConversionJob.
var CompletedStatusValues = []string{
	StatusSucceeded,
	StatusFailed,
	StatusCancelled,
}

// TabularFormats are the input formats the converters can decode.
var TabularFormats = []string{
	FormatCSV,
	FormatNDJSON,
}

// TabularExtensions maps raw-key file extensions to input formats.
var TabularExtensions = map[string]string{
	".csv":    FormatCSV,
	".json":   FormatNDJSON,
	".jsonl":  FormatNDJSON,
	".ndjson": FormatNDJSON,
}
