package fetcher

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"olx-car-scraper/utils"
)

// DefaultUserAgent is sent by both fetchers unless configured otherwise.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// BrowserConfig holds the headless browser settings.
type BrowserConfig struct {
	ChromeBin   string
	UserAgent   string
	PageTimeout time.Duration
	// SettleDelay gives client-side rendering time to finish after load.
	SettleDelay time.Duration
}

// BrowserFetcher renders pages in headless Chrome. One allocator lives for
// the whole run, each Fetch opens a fresh tab.
type BrowserFetcher struct {
	cfg    BrowserConfig
	logger *utils.Logger

	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
}

// NewBrowser starts the browser allocator. The returned fetcher must be closed.
func NewBrowser(ctx context.Context, cfg BrowserConfig, logger *utils.Logger) (*BrowserFetcher, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}

	chromeBin := cfg.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	logger.Info("[browser] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Starts the browser process so a missing binary fails here, not on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	return &BrowserFetcher{
		cfg:         cfg,
		logger:      logger,
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}, nil
}

// Fetch navigates a new tab to url and returns the document's outer HTML.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	defer cancel()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.cfg.PageTimeout)
	defer cancelTimeout()

	// Tie the tab to the caller's cancellation as well.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var (
		html   string
		status int64
	)
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if b.cfg.SettleDelay > 0 {
		actions = append(actions, chromedp.Sleep(b.cfg.SettleDelay))
	}
	actions = append(actions,
		chromedp.Evaluate(`performance.getEntriesByType("navigation")[0]?.responseStatus || 0`, &status),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	b.logger.Debug("[browser] Fetching %s", url)
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if te := fromContext(tabCtx, url, err); te != nil {
			return "", te
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &Error{Kind: KindHTTP, URL: url, Err: err}
	}

	if status >= 400 {
		return "", classifyStatus(url, int(status), nil)
	}
	if err := checkBody(url, html); err != nil {
		return "", err
	}
	return html, nil
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.cancelTab()
	b.cancelAlloc()
	return nil
}

// findChromeBinary checks CHROME_BIN, then PATH, then well-known locations.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
