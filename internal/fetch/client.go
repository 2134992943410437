package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"grainbids/internal/config"
)

// userAgent mirrors a desktop browser; several co-op sites serve an empty
// shell to unknown agents.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Client fetches co-op pages over HTTP. It rate-limits per host so a
// refresh run with several pages on one co-op platform does not hammer it.
type Client struct {
	http  *resty.Client
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient builds a fetch client from configuration.
func NewClient(cfg config.FetchConfig) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/csv;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Pragma", "no-cache")

	limitPerHost := rate.Limit(cfg.RatePerHost)
	if cfg.RatePerHost <= 0 {
		limitPerHost = rate.Inf
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		http:     httpClient,
		limit:    limitPerHost,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// FetchPage retrieves the raw body of one URL. Failures are returned as
// errors for the caller to log; the pipeline treats them as a zero-table
// source, never as a run-aborting condition.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if err := c.waitForHost(ctx, pageURL); err != nil {
		return "", err
	}

	resp, err := c.http.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch %s: unexpected status %d", pageURL, resp.StatusCode())
	}

	slog.Debug("fetched page",
		slog.String("url", pageURL),
		slog.Int("status", resp.StatusCode()),
		slog.Int("bytes", len(resp.Body())))
	return string(resp.Body()), nil
}

func (c *Client) waitForHost(ctx context.Context, pageURL string) error {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", pageURL, err)
	}

	c.mu.Lock()
	limiter, ok := c.limiters[parsed.Host]
	if !ok {
		limiter = rate.NewLimiter(c.limit, c.burst)
		c.limiters[parsed.Host] = limiter
	}
	c.mu.Unlock()

	return limiter.Wait(ctx)
}
