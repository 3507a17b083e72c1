package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrTransport marks a reachable status endpoint that answered with a
// non-success HTTP status. Unlike an unreachable endpoint, which is a
// transient condition retried on the next poll, this aborts the enclosing
// reload attempt.
var ErrTransport = errors.New("controller status endpoint error")

// Client scrapes the controller's local prometheus endpoint for status
// snapshots. The endpoint is plain unauthenticated HTTP on localhost.
type Client struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a status client for the given endpoint URL
// (for example "http://localhost:9302").
func NewClient(url string, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// FetchStatus performs a single synchronous scrape and parses the result.
//
// A (nil, nil) return means the endpoint was unreachable: the controller's
// status is currently unknown and the caller should simply try again later.
func (c *Client) FetchStatus(ctx context.Context) (*Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request for %s: %w", c.url, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("controller status endpoint unreachable", "url", c.url, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrTransport, c.url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response from %s: %v", ErrTransport, c.url, err)
	}
	status, err := ParseStatus(string(body))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("fetched controller status",
		"config_files", status.ConfigFiles,
		"load_error", status.LoadError,
		"applied", status.Applied,
	)
	return status, nil
}
