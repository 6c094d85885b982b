package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platinummonkey/beacon/pkg/telemetry"
)

const defaultRequestTimeout = 10 * time.Second

// HTTPSink delivers each event with its own POST to a collection endpoint.
// Events are sent one at a time, in the shape they were tracked; there is no
// client-side batching or buffering.
type HTTPSink struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

// HTTPOption customizes an HTTPSink
type HTTPOption func(*HTTPSink)

// WithHTTPClient overrides the HTTP client used for delivery
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(s *HTTPSink) {
		s.client = client
	}
}

// WithHeader adds a header to every delivery request
func WithHeader(key, value string) HTTPOption {
	return func(s *HTTPSink) {
		s.headers[key] = value
	}
}

// NewHTTPSink creates a sink posting events to the given endpoint
func NewHTTPSink(endpoint string, opts ...HTTPOption) *HTTPSink {
	s := &HTTPSink{
		endpoint: endpoint,
		headers:  make(map[string]string),
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoint returns the collection endpoint URL
func (s *HTTPSink) Endpoint() string {
	return s.endpoint
}

// Deliver implements telemetry.Sink. Any non-2xx response is an error; the
// caller decides whether to drop or record the failure.
func (s *HTTPSink) Deliver(ctx context.Context, event telemetry.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %q: %w", event.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver event %q: %w", event.Name, err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector rejected event %q: status %d", event.Name, resp.StatusCode)
	}
	return nil
}
