// Package runpod implements tryon.Transport for serverless endpoints that
// speak the /v2/{endpoint_id} queue API.
//
// client.go implements the Client molecule. It composes:
//   - wire.go: response shapes and status mapping
//   - core.GetHTTPClient: HTTP client factory (TLS settings)
//   - logging.Logger: structured logging
package runpod

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

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/logging"
	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/tryon"
	"go.uber.org/zap"
)

// DefaultMaxResponseBytes bounds response bodies. Completed outputs carry
// base64 images, so this is generous.
const DefaultMaxResponseBytes = 64 << 20

// Config holds connection settings for one endpoint.
type Config struct {
	// BaseURL is the API root. Default: https://api.runpod.ai
	BaseURL string

	// EndpointID selects the serverless endpoint. Required.
	EndpointID string

	// APIKey is sent as a bearer token. An empty key fails every call with
	// *core.AuthError before any request is made.
	APIKey string

	// RequestTimeout bounds run, status, cancel and health calls. Default: 30s.
	RequestTimeout time.Duration

	// SyncTimeout bounds runsync calls. Default: 120s.
	SyncTimeout time.Duration

	// MaxResponseBytes caps each response body. Default: 64 MiB.
	MaxResponseBytes int64
}

// DefaultConfig returns a Config with default timeouts and base URL.
func DefaultConfig() Config {
	return Config{
		BaseURL:          core.DefaultBaseURL,
		RequestTimeout:   core.DefaultRequestTimeout,
		SyncTimeout:      core.DefaultSyncTimeout,
		MaxResponseBytes: DefaultMaxResponseBytes,
	}
}

// ConfigFromCore maps application configuration onto a Config.
func ConfigFromCore(cfg *core.Config) Config {
	return Config{
		BaseURL:        cfg.BaseURL,
		EndpointID:     cfg.EndpointID,
		APIKey:         cfg.APIKey,
		RequestTimeout: cfg.RequestTimeout,
		SyncTimeout:    cfg.SyncTimeout,
	}
}

// Client calls one serverless endpoint.
//
// Thread-Safety:
//   - Client is safe for concurrent use
//   - HTTP client handles concurrency internally
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	logger     *logging.Logger
}

var (
	_ tryon.Transport = (*Client)(nil)
	_ tryon.Canceller = (*Client)(nil)
)

// NewClient creates a Client. httpClient should come from core.GetHTTPClient;
// per-call deadlines are applied through the request context.
func NewClient(cfg Config, httpClient *http.Client, logger *logging.Logger) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("runpod: HTTP client cannot be nil")
	}
	if strings.TrimSpace(cfg.EndpointID) == "" {
		return nil, core.ErrMissingConfig("RUNPOD_ENDPOINT_ID")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = core.DefaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = core.DefaultRequestTimeout
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = core.DefaultSyncTimeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	cfg.EndpointID = strings.TrimSpace(cfg.EndpointID)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, core.ErrInvalidValue("RUNPOD_BASE_URL", cfg.BaseURL, "must be an http(s) URL")
	}
	base.RawQuery = ""
	base.Fragment = ""

	if logger == nil {
		logger = logging.NewNop()
	}
	return &Client{
		cfg:        cfg,
		base:       base,
		httpClient: httpClient,
		logger:     logger.Named("runpod").With(zap.String(logging.KeyEndpointID, cfg.EndpointID)),
	}, nil
}

// Submit enqueues a job: POST /v2/{endpoint}/run.
//
// A body of {"error": ...} is returned as *core.JobError with State "REJECTED".
func (c *Client) Submit(ctx context.Context, req *tryon.JobRequest) (tryon.JobHandle, error) {
	if req == nil {
		return tryon.JobHandle{}, fmt.Errorf("runpod: request cannot be nil")
	}
	submittedAt := time.Now()

	var resp jobResponse
	if err := c.call(ctx, "submit", http.MethodPost, c.endpointURL("run"), req.Body(), c.cfg.RequestTimeout, &resp); err != nil {
		return tryon.JobHandle{}, err
	}
	if detail := resp.errorText(); detail != "" {
		return tryon.JobHandle{}, &core.JobError{JobID: resp.ID, State: "REJECTED", Detail: detail}
	}
	if resp.ID == "" {
		return tryon.JobHandle{}, &core.TransportError{Op: "submit", Err: errors.New("response has no job id")}
	}

	c.logger.Debug("job enqueued", zap.String(logging.KeyJobID, resp.ID), zap.String(logging.KeyState, resp.Status))
	return tryon.JobHandle{ID: resp.ID, SubmittedAt: submittedAt}, nil
}

// RunSync submits and waits server-side: POST /v2/{endpoint}/runsync.
// The status may be non-terminal when the service's wait elapsed first.
func (c *Client) RunSync(ctx context.Context, req *tryon.JobRequest) (tryon.JobStatus, error) {
	if req == nil {
		return tryon.JobStatus{}, fmt.Errorf("runpod: request cannot be nil")
	}

	var resp jobResponse
	if err := c.call(ctx, "runsync", http.MethodPost, c.endpointURL("runsync"), req.Body(), c.cfg.SyncTimeout, &resp); err != nil {
		return tryon.JobStatus{}, err
	}
	if resp.Status == "" {
		if detail := resp.errorText(); detail != "" {
			return tryon.JobStatus{}, &core.JobError{JobID: resp.ID, State: "REJECTED", Detail: detail}
		}
		return tryon.JobStatus{}, &core.TransportError{Op: "runsync", Err: errors.New("response has no status")}
	}
	return resp.toStatus(), nil
}

// PollOnce fetches the current status: GET /v2/{endpoint}/status/{id}.
func (c *Client) PollOnce(ctx context.Context, handle tryon.JobHandle) (tryon.JobStatus, error) {
	if handle.ID == "" {
		return tryon.JobStatus{}, core.ErrMissingConfig("job id")
	}

	var resp jobResponse
	if err := c.call(ctx, "status", http.MethodGet, c.endpointURL("status", handle.ID), nil, c.cfg.RequestTimeout, &resp); err != nil {
		return tryon.JobStatus{}, err
	}
	if resp.Status == "" {
		return tryon.JobStatus{}, &core.TransportError{Op: "status", Err: errors.New("response has no status")}
	}
	status := resp.toStatus()
	if status.JobID == "" {
		status.JobID = handle.ID
	}
	return status, nil
}

// Cancel cancels a queued or running job: POST /v2/{endpoint}/cancel/{id}.
func (c *Client) Cancel(ctx context.Context, handle tryon.JobHandle) error {
	if handle.ID == "" {
		return core.ErrMissingConfig("job id")
	}
	var resp jobResponse
	if err := c.call(ctx, "cancel", http.MethodPost, c.endpointURL("cancel", handle.ID), nil, c.cfg.RequestTimeout, &resp); err != nil {
		return err
	}
	c.logger.Debug("cancel acknowledged", zap.String(logging.KeyJobID, handle.ID), zap.String(logging.KeyState, resp.Status))
	return nil
}

// Health returns worker and queue counts: GET /v2/{endpoint}/health.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	if err := c.call(ctx, "health", http.MethodGet, c.endpointURL("health"), nil, c.cfg.RequestTimeout, &h); err != nil {
		return Health{}, err
	}
	return h, nil
}

// endpointURL builds {base}/v2/{endpoint}/{parts...} with each part escaped.
func (c *Client) endpointURL(parts ...string) string {
	elems := make([]string, 0, len(parts)+2)
	elems = append(elems, "v2", url.PathEscape(c.cfg.EndpointID))
	for _, p := range parts {
		elems = append(elems, url.PathEscape(p))
	}
	return c.base.JoinPath(elems...).String()
}

// call performs one request under its own deadline and decodes the JSON
// response into dest.
func (c *Client) call(ctx context.Context, op, method, reqURL string, body interface{}, timeout time.Duration, dest interface{}) error {
	if c.cfg.APIKey == "" {
		return &core.AuthError{}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller's own cancellation is not a transport failure.
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return &core.TransportError{Op: op, Timeout: timedOut, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return &core.TransportError{Op: op, StatusCode: resp.StatusCode, Timeout: timedOut, Err: fmt.Errorf("read response: %w", err)}
	}
	if int64(len(data)) > c.cfg.MaxResponseBytes {
		return &core.TransportError{Op: op, Err: fmt.Errorf("response exceeds %d bytes", c.cfg.MaxResponseBytes)}
	}

	c.logger.Debug("api call",
		zap.String("op", op),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("response_bytes", len(data)),
		zap.Duration("duration", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &core.AuthError{StatusCode: resp.StatusCode, Body: string(data)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &core.TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return &core.TransportError{Op: op, Body: string(data), Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
