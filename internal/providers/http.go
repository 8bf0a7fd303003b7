package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"mediaguard/internal/services"
)

// DefaultTimeout bounds every provider call.
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 4 << 20

// NewHTTPClient returns a client with the given timeout, or DefaultTimeout
// when timeout is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Body       []byte
	Latency    time.Duration
}

// Get performs a GET request and reads the body. Transport failures, including
// timeouts, are returned as provider failures; the status is not interpreted.
func Get(ctx context.Context, client *http.Client, provider, operation, endpoint string, header http.Header) (Response, error) {
	if client == nil {
		client = NewHTTPClient(0)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, services.Wrap(services.ErrProviderFailure, provider, operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	countRequest(ctx)
	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Response{Latency: latency}, services.Wrap(services.ErrProviderFailure, provider, operation,
			fmt.Sprintf("execute request (latency=%v)", latency), redactURLError(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Response{StatusCode: resp.StatusCode, Latency: latency}, services.Wrap(services.ErrProviderFailure, provider, operation, "read body", err)
	}
	return Response{StatusCode: resp.StatusCode, Body: body, Latency: latency}, nil
}

// GetJSON performs a GET request, fails with *HTTPError on any status other
// than 200 and decodes the body into out. The raw body is returned for audit.
func GetJSON(ctx context.Context, client *http.Client, provider, operation, endpoint string, header http.Header, out any) ([]byte, error) {
	resp, err := Get(ctx, client, provider, operation, endpoint, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{Provider: provider, Operation: operation, StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return nil, services.Wrap(services.ErrProviderFailure, provider, operation, "decode response", err)
	}
	return resp.Body, nil
}

// redactURLError drops the request URL from transport errors so query-string
// credentials never reach logs.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
