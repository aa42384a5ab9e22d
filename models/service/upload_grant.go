package service

import (
	"time"
)

// UploadGrant is a capability pairing a target key with an expiry
// time. It is valid for a single bucket and a single operation (a
// PUT to the pre-signed URL). Grants are not tracked after issuance;
// expiry is enforced by the signature the storage backend verifies.
type UploadGrant struct {
	Bucket    string    `json:"bucket"`
	Key       string    `json:"key"`
	Method    string    `json:"method"`
	UploadURL string    `json:"upload_url"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewUploadGrant(bucket, key, uploadURL string, ttl time.Duration) *UploadGrant {
	now := time.Now().UTC()
	return &UploadGrant{
		Bucket:    bucket,
		Key:       key,
		Method:    "PUT",
		UploadURL: uploadURL,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// ExpiredAt returns true if the grant is no longer valid at the
// given time.
func (grant *UploadGrant) ExpiredAt(t time.Time) bool {
	return t.After(grant.ExpiresAt)
}
