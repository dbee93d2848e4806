package olx

import (
	"context"
	"sync"
	"testing"
	"time"

	"olx-car-scraper/fetcher"
)

// stampedFetcher times every request that reaches the transport and fails
// the first attempt on the URLs in flaky.
type stampedFetcher struct {
	*fakeFetcher
	mu    sync.Mutex
	flaky map[string]bool
	times []time.Time
}

func (s *stampedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	s.mu.Lock()
	s.times = append(s.times, time.Now())
	fail := s.flaky[url]
	delete(s.flaky, url)
	s.mu.Unlock()

	if fail {
		return "", &fetcher.Error{Kind: fetcher.KindTimeout, URL: url, Err: context.DeadlineExceeded}
	}
	return s.fakeFetcher.Fetch(ctx, url)
}

func TestScrapeModelPacesEveryRequestIncludingRetries(t *testing.T) {
	const delay = 40 * time.Millisecond

	for _, workers := range []int{1, 3} {
		f := newFakeFetcher()
		f.pages[searchURL] = resultsPage(
			"/d/anuncio/bmw-e30-325i-IDa1.html",
			"/d/anuncio/bmw-e30-318i-IDb2.html",
			"/d/anuncio/bmw-e30-touring-IDc3.html",
		)
		f.pages[searchURL+"?page=2"] = resultsPage()
		f.pages[urlA] = detailPage("BMW E30 325i", "1 €")
		f.pages[urlB] = detailPage("BMW E30 318i", "2 €")
		f.pages[urlC] = detailPage("BMW E30 Touring", "3 €")
		sf := &stampedFetcher{fakeFetcher: f, flaky: map[string]bool{urlA: true}}

		cfg := testConfig()
		cfg.MaxConcurrency = workers
		cfg.MaxRetries = 3
		cfg.DelayBetweenRequests = delay
		factory := func(ctx context.Context) (fetcher.Fetcher, error) { return sf, nil }

		res, err := New(cfg, factory, discardLogger()).ScrapeModel(context.Background(), "BMW E30")
		if err != nil {
			t.Fatalf("workers=%d: ScrapeModel: %v", workers, err)
		}
		if len(res.Records) != 3 {
			t.Errorf("workers=%d: got %d records; want 3 after the retry", workers, len(res.Records))
		}
		// 2 results pages + 3 detail pages + 1 retry.
		if len(sf.times) != 6 {
			t.Fatalf("workers=%d: transport saw %d requests; want 6", workers, len(sf.times))
		}
		for i := 1; i < len(sf.times); i++ {
			if gap := sf.times[i].Sub(sf.times[i-1]); gap < delay-5*time.Millisecond {
				t.Errorf("workers=%d: gap before request %d = %v; want >= %v", workers, i, gap, delay)
			}
		}
	}
}
