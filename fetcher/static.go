package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gocolly/colly/v2"

	"olx-car-scraper/utils"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher fetches server-rendered HTML with colly, without a browser.
type StaticFetcher struct {
	cfg    StaticConfig
	logger *utils.Logger
}

// NewStatic creates a static fetcher.
func NewStatic(cfg StaticConfig, logger *utils.Logger) *StaticFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &StaticFetcher{cfg: cfg, logger: logger}
}

// Fetch retrieves a page. A new collector is used for every request so
// colly's visited-URL tracking never suppresses a refetch.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(f.cfg.Timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "pt-PT,pt;q=0.9,en;q=0.8")
	})

	var (
		html     string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
		f.logger.Debug("[static] %s -> %d (%d bytes)", url, r.StatusCode, len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = f.classify(ctx, url, status, err)
	})

	if err := c.Visit(url); err != nil && fetchErr == nil {
		fetchErr = f.classify(ctx, url, 0, err)
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	if err := checkBody(url, html); err != nil {
		return "", err
	}
	return html, nil
}

func (f *StaticFetcher) classify(ctx context.Context, url string, status int, err error) error {
	if status >= 400 {
		return classifyStatus(url, status, err)
	}
	if te := fromContext(ctx, url, err); te != nil {
		return te
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindHTTP, URL: url, StatusCode: status, Err: fmt.Errorf("request failed: %w", err)}
}

// Close releases resources. The static fetcher holds none.
func (f *StaticFetcher) Close() error {
	return nil
}
