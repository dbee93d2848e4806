package olx

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"olx-car-scraper/fetcher"
	"olx-car-scraper/models"
	"olx-car-scraper/utils"
)

// detailPathMarker identifies links to individual ads.
const detailPathMarker = "/d/"

// TraversalError reports the results page that could not be fetched. The
// URLs collected before it are still returned alongside.
type TraversalError struct {
	Page int
	URL  string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("traversal stopped at page %d (%s): %v", e.Page, e.URL, e.Err)
}

func (e *TraversalError) Unwrap() error { return e.Err }

// Traverser walks the paginated search results of one query.
type Traverser struct {
	fetcher  fetcher.Fetcher
	maxPages int
	logger   *utils.Logger
}

// NewTraverser builds a Traverser. f is expected to be paced already.
func NewTraverser(f fetcher.Fetcher, maxPages int, logger *utils.Logger) *Traverser {
	return &Traverser{fetcher: f, maxPages: maxPages, logger: logger}
}

// Collect gathers every distinct detail URL reachable from searchURL. It
// stops on the first page without links, on a page identical to the one
// before it (sites that keep serving their last page), after maxPages, or on
// the first fetch failure.
func (t *Traverser) Collect(ctx context.Context, searchURL string) (models.TraversalResult, error) {
	seen := utils.NewURLSet()
	result := models.TraversalResult{Stop: models.StopCapped}
	var previous []string

	for page := 1; page <= t.maxPages; page++ {
		pageURL, err := PageURL(searchURL, page)
		if err != nil {
			result.URLs = seen.Items()
			result.Stop = models.StopFailed
			return result, &TraversalError{Page: page, URL: searchURL, Err: err}
		}

		t.logger.Info("[olx] Scraping results page %d — URL: %s", page, pageURL)

		html, err := t.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			t.logger.Error("[olx] Results page %d failed: %v", page, err)
			result.URLs = seen.Items()
			result.Stop = models.StopFailed
			return result, &TraversalError{Page: page, URL: pageURL, Err: err}
		}
		result.Pages++

		links, err := DetailLinks(html, pageURL)
		if err != nil {
			result.URLs = seen.Items()
			result.Stop = models.StopFailed
			return result, &TraversalError{Page: page, URL: pageURL, Err: err}
		}

		added := 0
		for _, link := range links {
			if seen.Add(link) {
				added++
			}
		}
		t.logger.Info("[olx] Page %d done — %d links, %d new, %d total", page, len(links), added, seen.Size())

		if len(links) == 0 {
			t.logger.Info("[olx] Page %d returned 0 listings — stopping", page)
			result.Stop = models.StopExhausted
			break
		}
		if slices.Equal(links, previous) {
			t.logger.Info("[olx] Page %d repeats page %d — stopping", page, page-1)
			result.Stop = models.StopExhausted
			break
		}
		previous = links
	}

	if result.Stop == models.StopCapped {
		t.logger.Info("[olx] Reached page cap (%d)", t.maxPages)
	}
	result.URLs = seen.Items()
	return result, nil
}

// PageURL returns the address of results page n (1-based). Page 1 is the
// search URL unchanged.
func PageURL(searchURL string, n int) (string, error) {
	if n <= 1 {
		return searchURL, nil
	}
	u, err := url.Parse(searchURL)
	if err != nil {
		return "", fmt.Errorf("invalid search URL: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DetailLinks returns the canonical detail URLs linked from a results page,
// in document order and without duplicates.
func DetailLinks(html, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing results page: %w", err)
	}

	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		link, ok := CanonicalURL(base, href)
		if !ok {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links, nil
}

// CanonicalURL resolves href against base and strips query and fragment.
// Only http(s) links to detail pages are accepted.
func CanonicalURL(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	if !strings.Contains(u.Path, detailPathMarker) {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	return u.String(), true
}
