// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultTimeout bounds each relay request.
	DefaultTimeout = 10 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 1 << 20

	keyIDPath     = "/apiStats/api/get-key-id"
	userStatsPath = "/apiStats/api/user-stats"
)

// UserAgent is sent with every request. main overrides it with the build version.
var UserAgent = "relaystat/dev"

// Client talks to one relay base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	sleep      func(context.Context, time.Duration) error
	logf       func(format string, args ...interface{})
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithSleep replaces the backoff wait used by FetchWithRetry.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithLogf replaces the logger. Defaults to log.Printf.
func WithLogf(logf func(format string, args ...interface{})) Option {
	return func(c *Client) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewClient creates a client for baseURL. A trailing slash is ignored.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		sleep:      sleepContext,
		logf:       log.Printf,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveKeyID maps an API key to its relay identifier. It makes exactly one
// request and every failure wraps ErrKeyResolution.
func (c *Client) ResolveKeyID(ctx context.Context, apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("%w: %w", ErrKeyResolution, ErrEmptyKey)
	}

	var data keyIDData
	if err := c.post(ctx, keyIDPath, keyIDRequest{APIKey: apiKey}, &data); err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyResolution, err)
	}
	if data.ID == "" {
		return "", fmt.Errorf("%w: response carried no id", ErrKeyResolution)
	}
	return data.ID, nil
}

// UserStats fetches usage for apiID with a single request.
func (c *Client) UserStats(ctx context.Context, apiID string) (*UserStats, error) {
	if apiID == "" {
		return nil, ErrEmptyID
	}

	var stats UserStats
	if err := c.post(ctx, userStatsPath, userStatsRequest{APIID: apiID}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// post sends body as JSON and decodes the envelope's data into out.
// Request bodies are never logged since they carry the API key.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())

	c.logf("relay: request %s %s", req.Method, path)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logf("relay: response %d %s (%v)", resp.StatusCode, path, time.Since(start).Round(time.Millisecond))

	data, err := readResponse(resp)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return handleErrorResponse(path, resp.StatusCode, data)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !env.Success {
		return &APIError{Endpoint: path, Status: resp.StatusCode, Message: env.reason()}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &APIError{Endpoint: path, Status: resp.StatusCode, Message: "response carried no data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

// readResponse reads the body up to MaxResponseSize.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// handleErrorResponse turns a non-200 response into an *APIError, preferring
// the relay's own message when the body is an envelope.
func handleErrorResponse(path string, status int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && (env.Message != "" || env.Error != "") {
		return &APIError{Endpoint: path, Status: status, Message: env.reason()}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return &APIError{Endpoint: path, Status: status, Message: msg}
}
