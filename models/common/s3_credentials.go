package common

// S3Credentials holds connection settings for one S3-compatible
// storage provider.
type S3Credentials struct {
	Host      string
	KeyID     string
	SecretKey string
	UseSSL    bool
}
