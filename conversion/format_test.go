package conversion_test

import (
	"testing"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/conversion"
	"github.com/stretchr/testify/assert"
)

func TestDetectFormat(t *testing.T) {
	// Extension wins.
	assert.Equal(t, constants.FormatCSV, conversion.DetectFormat("acme/orders.csv", ""))
	assert.Equal(t, constants.FormatCSV, conversion.DetectFormat("ORDERS.CSV", ""))
	assert.Equal(t, constants.FormatNDJSON, conversion.DetectFormat("events.ndjson", ""))
	assert.Equal(t, constants.FormatNDJSON, conversion.DetectFormat("events.jsonl", ""))
	assert.Equal(t, constants.FormatNDJSON, conversion.DetectFormat("events.json", constants.ContentTypeCSV))

	// Content type as fallback.
	assert.Equal(t, constants.FormatCSV, conversion.DetectFormat("dump", "text/csv"))
	assert.Equal(t, constants.FormatCSV, conversion.DetectFormat("dump", "text/csv; charset=utf-8"))
	assert.Equal(t, constants.FormatNDJSON, conversion.DetectFormat("dump", "application/json"))

	assert.Equal(t, constants.FormatUnknown, conversion.DetectFormat("photo.png", "image/png"))
	assert.Equal(t, constants.FormatUnknown, conversion.DetectFormat("dump", ""))
}
