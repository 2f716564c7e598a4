package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"baws-workers/internal/common/metrics"
)

// Client is the shared outbound HTTP client. Each request is counted in
// http_client_requests_total.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &countingTransport{next: http.DefaultTransport},
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	return c.httpClient.Do(req)
}

// Standard exposes the underlying client for SDKs that take an *http.Client.
func (c *Client) Standard() *http.Client {
	return c.httpClient
}

type countingTransport struct {
	next http.RoundTripper
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	code := "error"
	if err == nil {
		code = fmt.Sprintf("%dxx", resp.StatusCode/100)
	}
	metrics.HTTPClientRequests.WithLabelValues(req.URL.Host, code).Inc()
	return resp, err
}
