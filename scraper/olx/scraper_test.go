package olx

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"olx-car-scraper/config"
	"olx-car-scraper/fetcher"
	"olx-car-scraper/models"
)

func testConfig() *config.Config {
	return &config.Config{
		BaseURL:        "https://www.olx.pt/carros-motos-e-barcos/carros",
		MaxPages:       5,
		MaxConcurrency: 1,
		MaxRetries:     1,
		DropRateAlarm:  0.5,
	}
}

const (
	urlA = "https://www.olx.pt/d/anuncio/bmw-e30-325i-IDa1.html"
	urlB = "https://www.olx.pt/d/anuncio/bmw-e30-318i-IDb2.html"
	urlC = "https://www.olx.pt/d/anuncio/bmw-e30-touring-IDc3.html"
)

func TestSearchURL(t *testing.T) {
	s := New(testConfig(), nil, discardLogger())
	tests := []struct {
		model string
		want  string
	}{
		{"BMW E30", searchURL},
		{"  bmw   e30 ", searchURL},
		{"Lancia Delta", "https://www.olx.pt/carros-motos-e-barcos/carros/q-lancia-delta/"},
	}
	for _, tt := range tests {
		if got := s.SearchURL(tt.model); got != tt.want {
			t.Errorf("SearchURL(%q) = %q; want %q", tt.model, got, tt.want)
		}
	}
}

func TestScrapeModelSkipsFailedDetailPage(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL] = resultsPage("/d/anuncio/bmw-e30-325i-IDa1.html", "/d/anuncio/bmw-e30-318i-IDb2.html")
	f.pages[searchURL+"?page=2"] = resultsPage("/d/anuncio/bmw-e30-touring-IDc3.html")
	f.pages[searchURL+"?page=3"] = resultsPage()
	f.pages[urlA] = detailPage("BMW E30 325i 1989", "12.500 €")
	f.errs[urlB] = &fetcher.Error{Kind: fetcher.KindTimeout, URL: urlB, Err: context.DeadlineExceeded}
	f.pages[urlC] = detailPage("BMW E30 Touring 1991", "9 900 €")

	res, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "bmw-e30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}

	if len(res.Records) != 2 || res.Skipped != 1 {
		t.Fatalf("got %d records, %d skipped; want 2 and 1", len(res.Records), res.Skipped)
	}
	if res.Records[0].ExternalID != "a1" || res.Records[1].ExternalID != "c3" {
		t.Errorf("records = %s, %s; want a1, c3", res.Records[0].ExternalID, res.Records[1].ExternalID)
	}
	if res.Failures[0].URL != urlB || res.Failures[0].Stage != models.StageFetch {
		t.Errorf("failure = %+v; want fetch failure for %s", res.Failures[0], urlB)
	}
	if !errors.Is(res.Failures[0].Err, fetcher.ErrTimeout) {
		t.Errorf("failure error = %v; want timeout", res.Failures[0].Err)
	}
	if res.TraversalErr != nil || res.Traversal.Stop != models.StopExhausted {
		t.Errorf("traversal = %s, %v; want exhausted without error", res.Traversal.Stop, res.TraversalErr)
	}
	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID", res.RunID)
	}
	if !f.closed {
		t.Error("fetcher was not released")
	}
}

func TestScrapeModelNothingFound(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL] = resultsPage()

	res, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}
	if len(res.Records) != 0 || res.Skipped != 0 {
		t.Errorf("got %d records, %d skipped; want 0 and 0", len(res.Records), res.Skipped)
	}
}

func TestScrapeModelAllDetailPagesFail(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL] = resultsPage("/d/anuncio/bmw-e30-325i-IDa1.html", "/d/anuncio/bmw-e30-318i-IDb2.html")
	f.pages[searchURL+"?page=2"] = resultsPage()
	f.pages[urlA] = `<html><body><p>removed</p></body></html>`

	res, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}
	if len(res.Records) != 0 || res.Skipped != 2 {
		t.Errorf("got %d records, %d skipped; want 0 and 2", len(res.Records), res.Skipped)
	}
}

func TestScrapeModelParsesPartialTraversal(t *testing.T) {
	f := newFakeFetcher()
	f.pages[searchURL] = resultsPage("/d/anuncio/bmw-e30-325i-IDa1.html")
	f.errs[searchURL+"?page=2"] = &fetcher.Error{Kind: fetcher.KindBlocked, URL: searchURL + "?page=2", StatusCode: 403, Err: errors.New("forbidden")}
	f.pages[urlA] = detailPage("BMW E30 325i 1989", "12.500 €")

	res, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}
	var te *TraversalError
	if !errors.As(res.TraversalErr, &te) || te.Page != 2 {
		t.Errorf("TraversalErr = %v; want failure at page 2", res.TraversalErr)
	}
	if res.Traversal.Stop != models.StopFailed || len(res.Records) != 1 {
		t.Errorf("got stop=%s records=%d; want failed with 1 record", res.Traversal.Stop, len(res.Records))
	}
}

func TestScrapeModelCountsMissingIDsWithoutFetching(t *testing.T) {
	noID := "https://www.olx.pt/d/anuncio/bmw-e30-sem-id.html"
	f := newFakeFetcher()
	f.pages[searchURL] = resultsPage("/d/anuncio/bmw-e30-sem-id.html", "/d/anuncio/bmw-e30-325i-IDa1.html")
	f.pages[searchURL+"?page=2"] = resultsPage()
	f.pages[urlA] = detailPage("BMW E30 325i", "12.500 €")

	res, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}
	if res.MissingIDs != 1 || res.Skipped != 1 || len(res.Records) != 1 {
		t.Errorf("got missing=%d skipped=%d records=%d; want 1, 1, 1", res.MissingIDs, res.Skipped, len(res.Records))
	}
	if f.callCount(noID) != 0 {
		t.Error("URL without an ID was fetched")
	}
	if res.DropRate() != 0.5 {
		t.Errorf("DropRate() = %v; want 0.5", res.DropRate())
	}
}

func TestScrapeModelDeduplicatesByExternalID(t *testing.T) {
	alias := "https://www.olx.pt/d/anuncio/bmw-325i-e30-IDa1.html"
	f := newFakeFetcher()
	f.pages[searchURL] = resultsPage("/d/anuncio/bmw-e30-325i-IDa1.html", "/d/anuncio/bmw-325i-e30-IDa1.html")
	f.pages[searchURL+"?page=2"] = resultsPage()
	f.pages[urlA] = detailPage("BMW E30 325i", "12.500 €")
	f.pages[alias] = detailPage("BMW E30 325i", "12.500 €")

	res, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}
	if len(res.Records) != 1 || res.Skipped != 0 {
		t.Errorf("got %d records, %d skipped; want 1 and 0", len(res.Records), res.Skipped)
	}
}

func TestScrapeModelConcurrentWorkersKeepOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConcurrency = 3

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

	res, err := New(cfg, f.factory(), discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if err != nil {
		t.Fatalf("ScrapeModel: %v", err)
	}
	want := []string{"a1", "b2", "c3"}
	if len(res.Records) != len(want) {
		t.Fatalf("got %d records; want %d", len(res.Records), len(want))
	}
	for i, id := range want {
		if res.Records[i].ExternalID != id {
			t.Errorf("record %d = %s; want %s", i, res.Records[i].ExternalID, id)
		}
	}
}

func TestScrapeModelFactoryFailure(t *testing.T) {
	boom := errors.New("no browser")
	factory := func(ctx context.Context) (fetcher.Fetcher, error) { return nil, boom }

	_, err := New(testConfig(), factory, discardLogger()).ScrapeModel(context.Background(), "BMW E30")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want wrapped factory error", err)
	}
}

func TestScrapeModelRejectsEmptyModel(t *testing.T) {
	f := newFakeFetcher()
	if _, err := New(testConfig(), f.factory(), discardLogger()).ScrapeModel(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty model")
	}
}
