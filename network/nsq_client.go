package network

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

type NSQClient struct {
	URL string
}

// Formally define this so we can generate mocks for testing.
type NSQClientInterface interface {
	Enqueue(topic, jobID string) error
}

// NewNSQClient returns a new NSQ client that will connect to the NSQ
// server at the specified url. The URL is typically available through
// Config.NsqURL, and usually ends with :4151. This is the URL to
// which we post items we want to queue, and from which our workers
// read.
//
// Note that this client provides write access to the queue, so we
// can add things. It does not provide read access. The workers do
// the reading.
func NewNSQClient(url string) *NSQClient {
	return &NSQClient{URL: url}
}

// Enqueue posts a ConversionJob ID to NSQ under the given topic.
// Topics are listed in the constants package: convert_sync for
// small files, convert_batch for large ones.
func (client *NSQClient) Enqueue(topic, jobID string) error {
	url := fmt.Sprintf("%s/pub?topic=%s", client.URL, topic)
	resp, err := http.Post(url, "text/plain", bytes.NewBufferString(jobID))
	if err != nil {
		return fmt.Errorf("nsqd returned an error when queuing data: %v", err)
	}
	if resp == nil {
		return fmt.Errorf("no response from nsqd at '%s'. Is it running?", url)
	}

	// nsqd sends a simple OK. We have to read the response body,
	// or the connection will hang open forever.
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != 200 {
		bodyText := "[no response body]"
		if len(body) > 0 {
			bodyText = string(body)
		}
		return fmt.Errorf("nsqd returned status code %d when attempting to queue data. "+
			"Response body: %s", resp.StatusCode, bodyText)
	}
	return nil
}
