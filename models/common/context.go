package common

import (
	ctx "context"
	"fmt"

	"github.com/datalift/ingest-services/network"
	"github.com/datalift/ingest-services/util/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"
)

// Context bundles the config and the service clients every worker
// and the gateway need. Build one per process with NewContext.
type Context struct {
	Config      *Config
	Logger      *logging.Logger
	NSQClient   *network.NSQClient
	RedisClient *network.RedisClient
	S3Clients   map[string]*minio.Client
}

func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	return &Context{
		Config:      config,
		Logger:      _logger,
		NSQClient:   getNsqClient(config),
		RedisClient: getRedisClient(config),
		S3Clients:   getS3Clients(config),
	}
}

func getLogger(config *Config) *logging.Logger {
	log, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return log
}

func getNsqClient(config *Config) *network.NSQClient {
	return network.NewNSQClient(config.NsqURL)
}

func getRedisClient(config *Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getS3Clients(config *Config) map[string]*minio.Client {
	s3Clients := make(map[string]*minio.Client, len(config.S3Credentials))
	for provider, creds := range config.S3Credentials {
		if creds.Host == "" {
			continue
		}
		client, err := minio.New(
			creds.Host,
			&minio.Options{
				Creds:  credentials.NewStaticV4(creds.KeyID, creds.SecretKey, ""),
				Secure: creds.UseSSL,
			})
		if err != nil {
			panic(err)
		}
		s3Clients[provider] = client
	}
	return s3Clients
}

// S3Client returns the client for the configured storage provider.
func (context *Context) S3Client() (*minio.Client, error) {
	client := context.S3Clients[context.Config.StorageProvider]
	if client == nil {
		return nil, fmt.Errorf("no S3 client for provider %s", context.Config.StorageProvider)
	}
	return client, nil
}

func (context *Context) S3StatObject(bucket, key string) (minio.ObjectInfo, error) {
	client, err := context.S3Client()
	if err != nil {
		return minio.ObjectInfo{}, err
	}
	return client.StatObject(ctx.Background(), bucket, key, minio.StatObjectOptions{})
}

func (context *Context) S3GetObject(bucket, key string) (*minio.Object, error) {
	client, err := context.S3Client()
	if err != nil {
		return nil, err
	}
	return client.GetObject(ctx.Background(), bucket, key, minio.GetObjectOptions{})
}
