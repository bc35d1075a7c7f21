package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"lmo-cli/downloader"
)

// kindError is a sentinel that also matches a broader error kind
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Common errors. ErrBadRequest also matches downloader.ErrInvalidRequest.
var (
	ErrBadRequest       error = &kindError{msg: "client: request rejected by server", kind: downloader.ErrInvalidRequest}
	ErrNotFound         = errors.New("client: resource not found")
	ErrServerError      = errors.New("client: server error")
	ErrUnexpectedStatus = errors.New("client: unexpected response status")
	ErrInvalidResponse  = errors.New("client: invalid response body")
	ErrCancelRejected   = errors.New("client: cancellation rejected")
)

// Options configures the client.
type Options struct {
	// Timeout bounds each unary request. The progress stream is not
	// subject to it.
	// Default: 30s
	Timeout time.Duration

	// HealthRetries is how many times a failed health check is retried.
	// Default: 2
	HealthRetries uint64

	// HealthBackoff is the initial delay between health check attempts.
	// Default: 500ms
	HealthBackoff time.Duration

	// UserAgent is sent with every request.
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:       30 * time.Second,
		HealthRetries: 2,
		HealthBackoff: 500 * time.Millisecond,
		UserAgent:     "lmo-cli",
	}
}

// HealthResponse is the server's health report.
type HealthResponse struct {
	Status        string `json:"status"`
	ServerVersion string `json:"server_version"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// Healthy reports whether the server considers itself healthy.
func (h *HealthResponse) Healthy() bool {
	return h.Status == "healthy"
}

type startResponse struct {
	DownloadID         string  `json:"download_id"`
	EstimatedSizeBytes *uint64 `json:"estimated_size_bytes,omitempty"`
	Message            string  `json:"message,omitempty"`
}

type cancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client talks to the lmo server over HTTP. It implements
// downloader.DownloadService.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	stream  *http.Client
	opts    Options
	logger  *zap.Logger
}

var _ downloader.DownloadService = (*Client)(nil)

// New creates a client for the server at baseURL.
func New(baseURL string, opts Options, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server URL must use http or https, got %q", baseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.HealthBackoff <= 0 {
		opts.HealthBackoff = DefaultOptions().HealthBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL: u,
		http:    &http.Client{Transport: transport},
		stream:  &http.Client{Transport: transport},
		opts:    opts,
		logger:  logger,
	}, nil
}

// Health checks that the server is reachable, retrying transient failures
// with exponential backoff.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.HealthBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.opts.HealthRetries), ctx)

	err := backoff.RetryNotify(func() error {
		err := c.doJSON(ctx, http.MethodGet, "/health", nil, &health)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrBadRequest) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.logger.Debug("health check failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	})
	if err != nil {
		return nil, err
	}
	return &health, nil
}

// Start asks the server to download a model.
func (c *Client) Start(ctx context.Context, req downloader.DownloadRequest) (downloader.DownloadHandle, error) {
	var resp startResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/models/download", req, &resp); err != nil {
		return downloader.DownloadHandle{}, err
	}
	if resp.DownloadID == "" {
		if resp.Message != "" {
			return downloader.DownloadHandle{}, fmt.Errorf("%w: %s", ErrInvalidResponse, resp.Message)
		}
		return downloader.DownloadHandle{}, fmt.Errorf("%w: missing download_id", ErrInvalidResponse)
	}
	return downloader.DownloadHandle{
		ID:                 resp.DownloadID,
		EstimatedSizeBytes: resp.EstimatedSizeBytes,
	}, nil
}

// Cancel requests cancellation of a download.
func (c *Client) Cancel(ctx context.Context, downloadID string) error {
	var resp cancelResponse
	if err := c.doJSON(ctx, http.MethodPost, downloadPath(downloadID, "cancel"), nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: %s", ErrCancelRejected, resp.Message)
	}
	return nil
}

// OpenProgressStream subscribes to the server-sent event stream of a
// download. The returned stream must be closed.
func (c *Client) OpenProgressStream(ctx context.Context, downloadID string) (downloader.EventStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(streamCtx, http.MethodGet, downloadPath(downloadID, "progress"), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("opening progress stream", zap.String("url", req.URL.String()))
	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open progress stream: %w", err)
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		cancel()
		return nil, err
	}

	return newEventStream(streamCtx, cancel, resp.Body, c.logger), nil
}

func downloadPath(downloadID, action string) string {
	return "/v1/models/download/" + url.PathEscape(downloadID) + "/" + action
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	return req, nil
}

// doJSON performs a unary request bounded by the configured timeout and
// decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request finished",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// checkStatus maps non-2xx responses to errors, keeping the server's own
// message when the body carries one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := resp.Status
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body errorResponse
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		msg = text
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s", ErrBadRequest, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", ErrServerError, msg)
	default:
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, msg)
	}
}
