package olx

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"olx-car-scraper/fetcher"
	"olx-car-scraper/utils"
)

// fakeFetcher serves canned pages keyed by URL. Unknown URLs are a 404.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  []string
	closed bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string]string), errs: make(map[string]error)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	if html, ok := f.pages[url]; ok {
		return html, nil
	}
	return "", &fetcher.Error{Kind: fetcher.KindHTTP, URL: url, StatusCode: 404, Err: fmt.Errorf("not found")}
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) factory() fetcher.Factory {
	return func(ctx context.Context) (fetcher.Fetcher, error) {
		return f, nil
	}
}

// resultsPage renders a search results page linking to hrefs.
func resultsPage(hrefs ...string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div data-testid="listing-grid">`)
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div data-cy="l-card"><a href="%s">ad</a></div>`, h)
	}
	b.WriteString(`<a href="/carros-motos-e-barcos/carros/">Carros</a><a href="#top">topo</a></div></body></html>`)
	return b.String()
}

func detailPage(title, price string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><h3 data-testid="ad-price">%s</h3></body></html>`, title, price)
}

func discardLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard, utils.LevelError)
}
