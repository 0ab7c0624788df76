// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client wraps http.Client with a mandatory timeout so no collaborator call
// can hang a turn indefinitely.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do executes the request; cancellation comes from the request's own context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
