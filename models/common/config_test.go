package common_test

import (
	"testing"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/models/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("INGEST_CONFIG_DIR", "./testdata")
	t.Setenv("INGEST_SERVICES_CONFIG", "test")

	config := common.NewConfig()
	assert.Equal(t, "test", config.ConfigName)
	assert.Equal(t, "raw-uploads", config.RawBucket)
	assert.Equal(t, "processed-tables", config.ProcessedBucket)
	assert.Equal(t, constants.S3ClientLocal, config.StorageProvider)
	assert.Equal(t, time.Hour, config.UploadGrantTTL)
	assert.Equal(t, int64(67108864), config.MaxSyncFileSize)
	assert.Equal(t, int64(1000), config.BatchMaxRowsPerPart)
	assert.Equal(t, 100, config.SchemaSampleRows)
	assert.Equal(t, 10*time.Second, config.BucketReaderInterval)

	creds, ok := config.S3Credentials[constants.S3ClientLocal]
	require.True(t, ok)
	assert.Equal(t, "localhost:9899", creds.Host)
	assert.False(t, creds.UseSSL)

	assert.NotEmpty(t, config.ToJSON())
}
