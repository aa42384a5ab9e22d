package gateway

import (
	ctx "context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/datalift/ingest-services/models/common"
	"github.com/datalift/ingest-services/models/service"
	"github.com/datalift/ingest-services/network"
	"github.com/gin-gonic/gin"
)

// Server is the HTTP front door for the ingest pipeline. It hands out
// pre-signed PUT URLs for the raw bucket and answers job status
// queries. It never proxies file bytes; clients upload straight to
// the object store.
type Server struct {
	Context *common.Context
	engine  *gin.Engine
}

func NewServer(context *common.Context) *Server {
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		Context: context,
		engine:  gin.New(),
	}
	server.engine.Use(gin.Recovery())
	server.engine.GET("/upload", server.IssueUploadGrant)
	server.engine.GET("/jobs/:id", server.GetJob)
	server.engine.GET("/healthz", server.Health)
	return server
}

// Engine exposes the router for tests.
func (server *Server) Engine() *gin.Engine {
	return server.engine
}

// Run blocks, serving requests on the configured listen address.
func (server *Server) Run() error {
	server.Context.Logger.Infof("Upload gateway listening on %s", server.Context.Config.GatewayListenAddr)
	return server.engine.Run(server.Context.Config.GatewayListenAddr)
}

// IssueUploadGrant handles GET /upload?file_name=<key>. It returns a
// pre-signed PUT URL the caller can use to upload one object into the
// raw bucket. Issuing a grant writes nothing; a grant that is never
// used costs nothing.
func (server *Server) IssueUploadGrant(c *gin.Context) {
	key := c.Query("file_name")
	if err := validateKey(key); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	client, err := server.Context.S3Client()
	if err != nil {
		server.Context.Logger.Errorf("Cannot issue grant for %s: %v", key, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage backend unavailable"})
		return
	}
	bucket := server.Context.Config.RawBucket
	ttl := server.Context.Config.UploadGrantTTL
	uploadURL, err := client.PresignedPutObject(ctx.Background(), bucket, key, ttl)
	if err != nil {
		server.Context.Logger.Errorf("Presign failed for %s/%s: %v", bucket, key, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage backend unavailable"})
		return
	}
	grant := service.NewUploadGrant(bucket, key, uploadURL.String(), ttl)
	server.Context.Logger.Infof("Issued upload grant for %s/%s, expires %s",
		bucket, key, grant.ExpiresAt.Format("2006-01-02T15:04:05Z"))
	c.JSON(http.StatusOK, grant)
}

// GetJob handles GET /jobs/:id, returning the ConversionJob and, when
// one exists, its ConversionRecord.
func (server *Server) GetJob(c *gin.Context) {
	jobID := c.Param("id")
	job, err := server.Context.RedisClient.JobGet(jobID)
	if errors.Is(err, network.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no job with id %s", jobID)})
		return
	}
	if err != nil {
		server.Context.Logger.Errorf("JobGet failed for %s: %v", jobID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job store unavailable"})
		return
	}
	response := gin.H{"job": job}
	record, err := server.Context.RedisClient.RecordGet(jobID)
	if err == nil {
		response["record"] = record
	}
	c.JSON(http.StatusOK, response)
}

// Health handles GET /healthz. The gateway is healthy when it can
// reach Redis; object store problems surface per-request as 503s.
func (server *Server) Health(c *gin.Context) {
	if _, err := server.Context.RedisClient.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// validateKey rejects names that would escape the raw bucket's
// namespace or collide with the partitioning scheme.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("param file_name is required")
	}
	if len(key) > 1024 {
		return fmt.Errorf("file_name exceeds 1024 characters")
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("file_name must be a relative key")
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("file_name contains an invalid path segment")
		}
	}
	if _, err := url.ParseRequestURI("/" + key); err != nil {
		return fmt.Errorf("file_name is not a valid object key")
	}
	return nil
}
