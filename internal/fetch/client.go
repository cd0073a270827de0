// Package fetch downloads replay data from the upstream replay service and
// schedules retries for replays that are not yet, or never will be,
// available.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Sentinel errors for per-replay recoverable outcomes. Anything else the
// client returns is a transport failure and aborts the whole batch.
var (
	// ErrRateLimited marks an upstream refusal (HTTP 429) or an index
	// response that is not decodable JSON, which the upstream serves when
	// throttling.
	ErrRateLimited = errors.New("upstream rate limited")
	// ErrAmbiguous marks an index lookup that did not resolve to exactly
	// one replay.
	ErrAmbiguous = errors.New("upstream lookup ambiguous")
)

// Client talks to the replay service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a replay service client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log,
	}
}

// indexEntry is one row of the replay index response.
type indexEntry struct {
	ID json.Number `json:"id"`
}

type indexResponse struct {
	Games []indexEntry `json:"games"`
}

// FetchReplay resolves a replay uuid to its internal game id and downloads
// the raw replay bytes. The two recoverable outcomes surface as
// ErrRateLimited and ErrAmbiguous; network and non-429 status failures are
// returned as-is.
func (c *Client) FetchReplay(ctx context.Context, uuid string) ([]byte, error) {
	gameID, err := c.lookupGameID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return c.downloadGameFile(ctx, gameID)
}

func (c *Client) lookupGameID(ctx context.Context, uuid string) (string, error) {
	u := c.baseURL + "/replays/data?uuid=" + url.QueryEscape(uuid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building index request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("index request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("index lookup for %s: %w", uuid, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("index lookup for %s returned status %d", uuid, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading index response: %w", err)
	}

	var index indexResponse
	if err := json.Unmarshal(body, &index); err != nil {
		// The upstream answers throttled lookups with an HTML page.
		c.log.Debug().Str("uuid", uuid).Msg("Index response is not JSON, treating as throttled")
		return "", fmt.Errorf("index lookup for %s: %w", uuid, ErrRateLimited)
	}
	if len(index.Games) != 1 {
		return "", fmt.Errorf("index lookup for %s matched %d games: %w", uuid, len(index.Games), ErrAmbiguous)
	}
	return index.Games[0].ID.String(), nil
}

func (c *Client) downloadGameFile(ctx context.Context, gameID string) ([]byte, error) {
	u := c.baseURL + "/replays/gameFile?gameId=" + url.QueryEscape(gameID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("download of game %s: %w", gameID, ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download of game %s returned status %d", gameID, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
