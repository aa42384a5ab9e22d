package network_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datalift/ingest-services/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNSQClientEnqueue(t *testing.T) {
	var gotTopic, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTopic = r.URL.Query().Get("topic")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	err := client.Enqueue("convert_sync", "job-abc-123")
	require.Nil(t, err)
	assert.Equal(t, "convert_sync", gotTopic)
	assert.Equal(t, "job-abc-123", gotBody)
}

func TestNSQClientEnqueueServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("E_BAD_TOPIC"))
	}))
	defer server.Close()

	client := network.NewNSQClient(server.URL)
	err := client.Enqueue("convert_sync", "job-abc-123")
	require.NotNil(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "E_BAD_TOPIC")
}

func TestNSQClientEnqueueUnreachable(t *testing.T) {
	client := network.NewNSQClient("http://localhost:1")
	err := client.Enqueue("convert_sync", "job-abc-123")
	assert.NotNil(t, err)
}
