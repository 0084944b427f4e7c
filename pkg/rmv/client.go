package rmv

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fahrplan/internal/domain"
)

const maxBodySize = 4 << 20

// Client fetches the rail departure board
type Client struct {
	baseURL    string
	location   *time.Location
	now        func() time.Time
	httpClient *http.Client
}

type Option func(*Client)

// WithClock overrides the clock used for the board's start time
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, loc *time.Location, timeout time.Duration, opts ...Option) *Client {
	if loc == nil {
		loc = time.UTC
	}
	c := &Client{
		baseURL:  baseURL,
		location: loc,
		now:      time.Now,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name identifies the source in logs and metrics
func (c *Client) Name() string {
	return domain.SourceRail
}

// boardURL adds the local start time the board expects, e.g. time=08:15:00
func (c *Client) boardURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	local := c.now().In(c.location)
	q := u.Query()
	q.Set("time", fmt.Sprintf("%02d:%02d:00", local.Hour(), local.Minute()))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchBoard returns the raw board payload
func (c *Client) FetchBoard(ctx context.Context) ([]byte, error) {
	reqURL, err := c.boardURL()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	// The board only answers browser-looking clients.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Linux; Android 6.0; Nexus 5 Build/MRA58N) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Mobile Safari/537.36")
	req.Header.Set("Sec-Ch-Ua-Mobile", "?1")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %v", domain.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", domain.ErrUpstreamFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", domain.ErrUpstreamFetch, err)
	}
	return body, nil
}

// Fetch downloads and parses the board
func (c *Client) Fetch(ctx context.Context) ([]domain.ScheduleEntry, error) {
	body, err := c.FetchBoard(ctx)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}
