// Package sdk is the Go client for the meshgate control API.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"meshgate"
)

// Client talks to a meshgate daemon over its unix socket.
type Client struct {
	http *retryablehttp.Client
	base string
}

// Option configures a Client.
type Option func(*Client)

// WithRetryMax overrides the number of request retries.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// New creates a client for the daemon at socketPath. The HTTP host is a
// placeholder; every request is dialed over the unix socket.
func New(socketPath string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = time.Second
	rc.Logger = nil
	rc.HTTPClient.Transport = &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	c := &Client{http: rc, base: "http://meshgate"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health returns the daemon version.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/health", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Validate checks a serialized config. A false return carries the reason.
func (c *Client) Validate(ctx context.Context, cfg string) (bool, string, error) {
	var out struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	in := map[string]string{"config": cfg}
	if err := c.do(ctx, http.MethodPost, "/v1/config/validate", in, &out); err != nil {
		return false, "", err
	}
	return out.Valid, out.Error, nil
}

// Start starts an instance from a serialized config and returns its id.
func (c *Client) Start(ctx context.Context, cfg string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	in := map[string]string{"config": cfg}
	if err := c.do(ctx, http.MethodPost, "/v1/instances", in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// Stop stops the named instances. Unparseable ids come back in skipped.
func (c *Client) Stop(ctx context.Context, ids []string) (skipped []string, err error) {
	var out struct {
		Skipped []string `json:"skipped"`
	}
	in := map[string][]string{"ids": ids}
	if err := c.do(ctx, http.MethodDelete, "/v1/instances", in, &out); err != nil {
		return nil, err
	}
	return out.Skipped, nil
}

// Running lists the ids of running instances.
func (c *Client) Running(ctx context.Context) ([]string, error) {
	var out struct {
		IDs []string `json:"ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/instances", nil, &out); err != nil {
		return nil, err
	}
	return out.IDs, nil
}

// IsRunning reports whether the instance named by id is running.
func (c *Client) IsRunning(ctx context.Context, id string) (bool, error) {
	var out struct {
		Running bool `json:"running"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/instances/"+id, nil, &out); err != nil {
		return false, err
	}
	return out.Running, nil
}

// Status returns one serialized status entry per running instance.
func (c *Client) Status(ctx context.Context) ([]meshgate.StatusEntry, error) {
	var out struct {
		Instances []meshgate.StatusEntry `json:"instances"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return out.Instances, nil
}

// SetTunFD stores the tunnel device descriptor for the next start.
func (c *Client) SetTunFD(ctx context.Context, fd int) error {
	in := map[string]int{"fd": fd}
	return c.do(ctx, http.MethodPut, "/v1/tun", in, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
