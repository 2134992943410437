package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserFetcher renders JavaScript-driven co-op pages in headless Chrome
// and returns the resulting DOM. It is only consulted for sources marked
// browser-backed, or when the static fetch of a page yields no tables.
type BrowserFetcher struct {
	timeout time.Duration
}

// NewBrowserFetcher creates a headless-browser fetcher with the given
// per-page timeout.
func NewBrowserFetcher(timeout time.Duration) *BrowserFetcher {
	return &BrowserFetcher{timeout: timeout}
}

// FetchRendered navigates to the URL, waits for the document body, and
// returns the serialized DOM after scripts have run.
func (b *BrowserFetcher) FetchRendered(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if b.timeout > 0 {
		var cancel context.CancelFunc
		browserCtx, cancel = context.WithTimeout(browserCtx, b.timeout)
		defer cancel()
	}

	var rendered string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &rendered),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	slog.Debug("rendered page in browser",
		slog.String("url", pageURL),
		slog.Int("bytes", len(rendered)))
	return rendered, nil
}
