package busboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"fahrplan/internal/domain"
)

const maxBodySize = 2 << 20

// Client fetches the bus operator's departure monitor fragment
type Client struct {
	url        string
	selectors  Selectors
	httpClient *http.Client
}

func New(url string, timeout time.Duration) *Client {
	return &Client{
		url:       url,
		selectors: DefaultSelectors,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (c *Client) Name() string {
	return domain.SourceBus
}

// FetchRows downloads the fragment and extracts its departure rows
func (c *Client) FetchRows(ctx context.Context) ([]domain.RawRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", domain.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrUpstreamFetch, resp.StatusCode)
	}

	return c.selectors.Extract(io.LimitReader(resp.Body, maxBodySize))
}

// Fetch downloads, extracts and parses the monitor
func (c *Client) Fetch(ctx context.Context) ([]domain.ScheduleEntry, error) {
	rows, err := c.FetchRows(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(rows)
}
