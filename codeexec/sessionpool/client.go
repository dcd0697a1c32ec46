// Package sessionpool implements a client for a remote hosted code execution
// session pool. Each session is an isolated interpreter context identified by
// an opaque identifier: variables assigned by one execution remain visible to
// later executions on the same identifier until the session is restarted.
// Files move in and out of the session through upload/download endpoints and
// are visible to executing code under the fixed mount path /mnt/data.
//
// Every request is authenticated with a bearer token obtained from a
// TokenProvider immediately before sending, so short-lived credentials work
// without client restarts.
package sessionpool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/agenthive/agenthive/logging"
)

// MountPath is the directory inside a remote session where uploaded files
// appear and from which produced files are downloaded.
const MountPath = "/mnt/data"

// DefaultAPIVersion is sent as the api-version query parameter when the
// client is not configured otherwise.
const DefaultAPIVersion = "2024-02-02-preview"

// Options configure the session pool client.
type Options struct {
	// APIVersion overrides the api-version query parameter.
	APIVersion string
	// HTTPClient overrides the underlying HTTP client (timeout included).
	HTTPClient *http.Client
	// MaxRetries bounds retry attempts for throttled / transient failures.
	MaxRetries int
	// RetryBaseDelay is the first backoff delay; doubled per attempt, capped
	// at 10x the base.
	RetryBaseDelay time.Duration
	// Logger receives request level diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Client talks to one session pool endpoint. It is safe for concurrent use
// and is typically shared by many Session handles.
type Client struct {
	endpoint   *url.URL
	apiVersion string
	httpClient *http.Client
	tokens     TokenProvider
	maxRetries int
	baseDelay  time.Duration
	logger     logging.Logger
}

// NewClient creates a client for the pool management endpoint. The endpoint
// is the pool's base URL; paths like /code/execute and /files are appended
// per request.
func NewClient(endpoint string, tokens TokenProvider, optFns ...func(o *Options)) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse session pool endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("session pool endpoint %q must be absolute", endpoint)
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	opts := Options{
		APIVersion:     DefaultAPIVersion,
		HTTPClient:     &http.Client{Timeout: 100 * time.Second},
		MaxRetries:     3,
		RetryBaseDelay: 500 * time.Millisecond,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{
		endpoint:   u,
		apiVersion: opts.APIVersion,
		httpClient: opts.HTTPClient,
		tokens:     tokens,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		logger:     opts.Logger,
	}, nil
}

// buildURL joins path segments onto the endpoint and attaches identifier +
// api-version query parameters.
func (c *Client) buildURL(identifier string, segments ...string) string {
	u := *c.endpoint
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(segments, "/")
	q := u.Query()
	q.Set("identifier", identifier)
	q.Set("api-version", c.apiVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

// do sends the request with bearer auth and bounded retries on transient
// failures. The body factory is re-invoked per attempt so retried requests do
// not reuse a drained reader.
func (c *Client) do(ctx context.Context, method, rawURL, contentType string, body func() (io.Reader, error)) ([]byte, error) {
	var lastErr error
	delay := c.baseDelay
	maxDelay := 10 * c.baseDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			if delay *= 2; delay > maxDelay {
				delay = maxDelay
			}
		}

		respBody, err := c.doOnce(ctx, method, rawURL, contentType, body)
		if err == nil {
			return respBody, nil
		}
		lastErr = err

		svcErr, ok := err.(*ServiceError)
		if !ok || !svcErr.retryable() {
			return nil, err
		}
		c.logger.Warn("session pool request retrying", "status", svcErr.StatusCode, "attempt", attempt+1)
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, rawURL, contentType string, body func() (io.Reader, error)) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		var err error
		if reader, err = body(); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build session pool request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session pool token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session pool request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read session pool response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: serviceMessage(respBody)}
	}
	return respBody, nil
}

// serviceMessage extracts a human readable message from an error payload,
// falling back to the raw body.
func serviceMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return strings.TrimSpace(string(bytes.TrimSpace(body)))
}
