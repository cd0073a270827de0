// Package api handles communication with the leaderboard frontend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tagpro-records/tracker/pkg/core"
)

// Client pushes record entries to the leaderboard frontend.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// New creates a new leaderboard client.
func New(baseURL, password string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the leaderboard frontend is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Push replaces the leaderboard contents with the given entries. Callers
// pass entries newest first; the frontend renders them in the order sent.
func (c *Client) Push(ctx context.Context, entries []core.RunResult) error {
	body, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding leaderboard entries: %w", err)
	}

	u := c.baseURL + "/records?password=" + url.QueryEscape(c.password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building leaderboard request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("leaderboard push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leaderboard push returned status %d", resp.StatusCode)
	}
	return nil
}
