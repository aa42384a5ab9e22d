package common

import (
	"fmt"
	"os"
	"time"

	"github.com/datalift/ingest-services/constants"
	"github.com/datalift/ingest-services/util"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

type Config struct {
	BaseWorkingDir          string
	BatchMaxRowsPerPart     int64
	BucketReaderInterval    time.Duration
	ConfigName              string
	ConvertTempDir          string
	GatewayListenAddr       string
	LogDir                  string
	LogLevel                logging.Level
	MaxSyncFileSize         int64
	NsqLookupd              string
	NsqURL                  string
	PidFilePath             string
	ProcessedBucket         string
	ProcessedUploadRetries  int
	ProcessedUploadRetryMs  time.Duration
	RawBucket               string
	RedisDefaultDB          int
	RedisPassword           string
	RedisURL                string
	S3Credentials           map[string]S3Credentials
	SchemaSampleRows        int
	StorageProvider         string
	UploadGrantTTL          time.Duration
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// NewConfig returns a new config based on env var INGEST_SERVICES_CONFIG.
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.sanityCheck()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	return &Config{
		BaseWorkingDir:         v.GetString("BASE_WORKING_DIR"),
		BatchMaxRowsPerPart:    v.GetInt64("BATCH_MAX_ROWS_PER_PART"),
		BucketReaderInterval:   v.GetDuration("BUCKET_READER_INTERVAL"),
		ConfigName:             envName,
		ConvertTempDir:         v.GetString("CONVERT_TEMP_DIR"),
		GatewayListenAddr:      v.GetString("GATEWAY_LISTEN_ADDR"),
		LogDir:                 v.GetString("LOG_DIR"),
		LogLevel:               logLevels[v.GetString("LOG_LEVEL")],
		MaxSyncFileSize:        v.GetInt64("MAX_SYNC_FILE_SIZE"),
		NsqLookupd:             v.GetString("NSQ_LOOKUPD"),
		NsqURL:                 v.GetString("NSQ_URL"),
		PidFilePath:            v.GetString("PID_FILE_PATH"),
		ProcessedBucket:        v.GetString("PROCESSED_BUCKET"),
		ProcessedUploadRetries: v.GetInt("PROCESSED_UPLOAD_RETRIES"),
		ProcessedUploadRetryMs: v.GetDuration("PROCESSED_UPLOAD_RETRY_MS"),
		RawBucket:              v.GetString("RAW_BUCKET"),
		RedisDefaultDB:         v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisURL:               v.GetString("REDIS_URL"),
		S3Credentials: map[string]S3Credentials{
			constants.S3ClientAWS: {
				Host:      v.GetString("S3_AWS_HOST"),
				KeyID:     v.GetString("S3_AWS_KEY"),
				SecretKey: v.GetString("S3_AWS_SECRET"),
				UseSSL:    envName != "dev" && envName != "test",
			},
			constants.S3ClientLocal: {
				Host:      v.GetString("S3_LOCAL_HOST"),
				KeyID:     v.GetString("S3_LOCAL_KEY"),
				SecretKey: v.GetString("S3_LOCAL_SECRET"),
				UseSSL:    false,
			},
		},
		SchemaSampleRows: v.GetInt("SCHEMA_SAMPLE_ROWS"),
		StorageProvider:  v.GetString("STORAGE_PROVIDER"),
		UploadGrantTTL:   v.GetDuration("UPLOAD_GRANT_TTL"),
	}
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("INGEST_CONFIG_DIR")
	envName := getRequiredEnvVar("INGEST_SERVICES_CONFIG")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.BaseWorkingDir = expandPath(c.BaseWorkingDir)
	c.ConvertTempDir = expandPath(c.ConvertTempDir)
	c.LogDir = expandPath(c.LogDir)
}

func expandPath(dirName string) string {
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

func (c *Config) sanityCheck() {
	if c.RawBucket == "" || c.ProcessedBucket == "" {
		panic("Config must name both RAW_BUCKET and PROCESSED_BUCKET")
	}
	if c.RawBucket == c.ProcessedBucket {
		panic("RAW_BUCKET and PROCESSED_BUCKET must differ")
	}
	if _, ok := c.S3Credentials[c.StorageProvider]; !ok {
		panic(fmt.Sprintf("STORAGE_PROVIDER %s has no credentials", c.StorageProvider))
	}
	if c.UploadGrantTTL == 0 {
		c.UploadGrantTTL = time.Hour
	}
	if c.SchemaSampleRows == 0 {
		c.SchemaSampleRows = 200
	}
	if c.BatchMaxRowsPerPart == 0 {
		c.BatchMaxRowsPerPart = 500000
	}
}

func (c *Config) makeDirs() {
	dirs := []string{
		c.BaseWorkingDir,
		c.ConvertTempDir,
		c.LogDir,
	}
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

// ToJSON is for logging config at startup. Credentials are omitted.
func (c *Config) ToJSON() string {
	return fmt.Sprintf(`{"config": "%s", "raw_bucket": "%s", "processed_bucket": "%s", `+
		`"storage_provider": "%s", "max_sync_file_size": %d, "upload_grant_ttl": "%s"}`,
		c.ConfigName, c.RawBucket, c.ProcessedBucket, c.StorageProvider,
		c.MaxSyncFileSize, c.UploadGrantTTL)
}
