package network

import (
	"errors"
	"fmt"

	"github.com/datalift/ingest-services/models/service"
	"github.com/go-redis/redis/v7"
)

// ErrNotFound means the requested key does not exist in Redis, as
// opposed to Redis being unreachable. Callers check for it with
// errors.Is.
var ErrNotFound = errors.New("key does not exist")

// RedisClient stores ConversionJobs, ConversionRecords, and
// WorkResults while jobs move through the pipeline. Each job gets
// one Redis hash keyed by job ID; the bucket reader also keeps a
// plain-string index so it won't queue the same (key, etag) twice.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func (c *RedisClient) JobGet(jobID string) (*service.ConversionJob, error) {
	data, err := c.client.HGet(jobKey(jobID), "item").Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("JobGet (%s): %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("JobGet (%s): %s", jobID, err.Error())
	}
	return service.ConversionJobFromJSON(data)
}

func (c *RedisClient) JobSave(job *service.ConversionJob) error {
	jsonData, err := job.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(jobKey(job.ID), "item", jsonData).Result()
	return err
}

// JobDelete removes the job hash, including the job's record and
// all of its work results.
func (c *RedisClient) JobDelete(jobID string) error {
	_, err := c.client.Del(jobKey(jobID)).Result()
	return err
}

func (c *RedisClient) RecordGet(jobID string) (*service.ConversionRecord, error) {
	data, err := c.client.HGet(jobKey(jobID), "record").Result()
	if err != nil {
		return nil, fmt.Errorf("RecordGet (%s): %s", jobID, err.Error())
	}
	return service.ConversionRecordFromJSON(data)
}

func (c *RedisClient) RecordSave(jobID string, record *service.ConversionRecord) error {
	jsonData, err := record.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(jobKey(jobID), "record", jsonData).Result()
	return err
}

func (c *RedisClient) WorkResultGet(jobID, operation string) (*service.WorkResult, error) {
	field := fmt.Sprintf("result:%s", operation)
	data, err := c.client.HGet(jobKey(jobID), field).Result()
	if err != nil {
		return nil, fmt.Errorf("WorkResultGet (%s, %s): %s", jobID, operation, err.Error())
	}
	return service.WorkResultFromJSON(data)
}

func (c *RedisClient) WorkResultSave(jobID string, result *service.WorkResult) error {
	field := fmt.Sprintf("result:%s", result.Operation)
	jsonData, err := result.ToJSON()
	if err != nil {
		return err
	}
	_, err = c.client.HSet(jobKey(jobID), field, jsonData).Result()
	return err
}

// SeenIndexGet returns the ID of the job created for this exact
// version (etag) of a raw object, or an empty string if none exists.
func (c *RedisClient) SeenIndexGet(bucket, key, etag string) (string, error) {
	jobID, err := c.client.Get(seenIndexKey(bucket, key, etag)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return jobID, nil
}

func (c *RedisClient) SeenIndexSet(bucket, key, etag, jobID string) error {
	_, err := c.client.Set(seenIndexKey(bucket, key, etag), jobID, 0).Result()
	return err
}

func seenIndexKey(bucket, key, etag string) string {
	return fmt.Sprintf("seen:%s/%s:%s", bucket, key, etag)
}
