package catalog

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches the catalog CSV export.
type Client struct {
	url        string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a catalog client for the given export URL.
func NewClient(url string, log zerolog.Logger) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Fetch downloads and parses the catalog, returning only the usable entries.
// Illegal entries are logged and excluded.
func (c *Client) Fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building catalog request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog request returned status %d", resp.StatusCode)
	}

	entries, err := ParseCSV(resp.Body)
	if err != nil {
		return nil, err
	}

	legal, illegal := FilterLegal(entries)
	for _, e := range illegal {
		c.log.Warn().
			Str("mapId", e.MapID).
			Str("name", e.Name).
			Msg("Excluding illegal catalog entry")
	}
	c.log.Debug().Int("usable", len(legal)).Int("illegal", len(illegal)).Msg("Fetched catalog")
	return legal, nil
}

// Cache memoizes the fetched catalog for a fixed window. It is owned by the
// caller; there is no process-wide hidden cache.
type Cache struct {
	mu        sync.Mutex
	fetch     func(ctx context.Context) ([]Entry, error)
	ttl       time.Duration
	entries   []Entry
	fetchedAt time.Time
	now       func() time.Time
}

// NewCache wraps a client with a time-windowed cache.
func NewCache(client *Client, ttl time.Duration) *Cache {
	return &Cache{
		fetch: client.Fetch,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the cached catalog, refetching when the cached copy is older
// than the window. A failed refresh keeps serving the previous copy if one
// exists.
func (c *Cache) Get(ctx context.Context) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.entries != nil && now.Sub(c.fetchedAt) <= c.ttl {
		return c.entries, nil
	}

	entries, err := c.fetch(ctx)
	if err != nil {
		if c.entries != nil {
			return c.entries, nil
		}
		return nil, err
	}
	c.entries = entries
	c.fetchedAt = now
	return entries, nil
}
