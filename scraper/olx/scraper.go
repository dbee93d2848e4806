// Package olx scrapes car listings from olx.pt: it walks the search results
// of a model query, fetches every detail page and parses it into records.
package olx

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"olx-car-scraper/config"
	"olx-car-scraper/extract"
	"olx-car-scraper/fetcher"
	"olx-car-scraper/models"
	"olx-car-scraper/utils"
)

// Scraper orchestrates one scrape run per car model.
type Scraper struct {
	cfg     *config.Config
	factory fetcher.Factory
	parser  *Parser
	logger  *utils.Logger
}

// New creates a ready-to-use OLX Scraper. factory is called once per
// ScrapeModel call.
func New(cfg *config.Config, factory fetcher.Factory, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		factory: factory,
		parser:  NewParser(),
		logger:  logger,
	}
}

// SearchURL builds the query URL for a car model, e.g. "BMW E30" ->
// BASE_URL/q-bmw-e30/.
func (s *Scraper) SearchURL(carModel string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(carModel)), "-")
	return s.cfg.BaseURL + "/q-" + url.PathEscape(slug) + "/"
}

type detailOutcome struct {
	done    bool
	record  *models.ListingRecord
	failure *models.PageFailure
}

// ScrapeModel runs traversal and detail extraction for carModel. Individual
// page failures are counted in the result, never returned. An error means
// nothing could be attempted.
func (s *Scraper) ScrapeModel(ctx context.Context, carModel string) (*models.ScrapeResult, error) {
	carModel = strings.TrimSpace(carModel)
	if carModel == "" {
		return nil, errors.New("car model must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &models.ScrapeResult{
		RunID:     uuid.NewString(),
		Query:     carModel,
		SearchURL: s.SearchURL(carModel),
		Records:   make([]*models.ListingRecord, 0),
	}
	s.logger.Info("[olx] Run %s — scraping %q (max %d pages, concurrency %d)",
		result.RunID, carModel, s.cfg.MaxPages, s.cfg.MaxConcurrency)

	raw, err := s.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring fetcher: %w", err)
	}
	// One limiter for the physical fetcher. It sits under the retry layer so
	// results pages, detail pages and every retry of either are spaced alike.
	limiter := utils.NewRateLimiter(s.cfg.DelayBetweenRequests)
	f := fetcher.WithRetry(fetcher.WithPacing(raw, limiter), s.cfg.MaxRetries, s.cfg.DelayBetweenRequests, s.logger)
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("[olx] Closing fetcher: %v", err)
		}
	}()

	traversal, err := NewTraverser(f, s.cfg.MaxPages, s.logger).Collect(ctx, result.SearchURL)
	result.Traversal = traversal
	if err != nil {
		result.TraversalErr = err
		s.logger.Warn("[olx] Traversal incomplete (%v) — continuing with %d collected URLs", err, len(traversal.URLs))
	}
	s.logger.Info("[olx] Traversal %s after %d pages — %d detail URLs", traversal.Stop, traversal.Pages, len(traversal.URLs))

	outcomes := s.scrapeDetails(ctx, f, traversal.URLs)

	seen := make(map[string]struct{})
	for i, out := range outcomes {
		switch {
		case !out.done:
			result.Skipped++
			result.Failures = append(result.Failures, models.PageFailure{
				URL: traversal.URLs[i], Stage: models.StageFetch, Err: context.Cause(ctx),
			})
		case out.failure != nil:
			result.Skipped++
			if IsMissingID(out.failure.Err) {
				result.MissingIDs++
			}
			result.Failures = append(result.Failures, *out.failure)
		default:
			if _, dup := seen[out.record.ExternalID]; dup {
				s.logger.Debug("[olx] Duplicate listing %s at %s — ignored", out.record.ExternalID, out.record.SourceURL)
				continue
			}
			seen[out.record.ExternalID] = struct{}{}
			result.Records = append(result.Records, out.record)
		}
	}

	if rate := result.DropRate(); rate > s.cfg.DropRateAlarm {
		s.logger.Warn("[olx] %.0f%% of detail URLs had no listing ID (%d/%d) — the URL format may have changed",
			rate*100, result.MissingIDs, len(traversal.URLs))
	}

	s.logger.Info("[olx] Run %s complete — %d records, %d skipped", result.RunID, len(result.Records), result.Skipped)
	return result, nil
}

// scrapeDetails fetches and parses every URL through the worker pool. The
// outcome slice is indexed like urls so the result order is stable. Pacing
// happens inside f, so the pool itself is unpaced.
func (s *Scraper) scrapeDetails(ctx context.Context, f fetcher.Fetcher, urls []string) []detailOutcome {
	outcomes := make([]detailOutcome, len(urls))
	pool := utils.NewWorkerPool(s.cfg.MaxConcurrency, nil)
	var mu sync.Mutex

	for i, u := range urls {
		// No fetch for a URL that cannot yield a record.
		if _, ok := extract.ExternalID(u); !ok {
			s.logger.Warn("[olx] No listing ID in %s — skipping", u)
			outcomes[i] = detailOutcome{done: true, failure: &models.PageFailure{
				URL: u, Stage: models.StageParse,
				Err: &ParseError{Kind: MissingField, Field: "external_id", URL: u},
			}}
			continue
		}
		if ctx.Err() != nil {
			break
		}

		i, u := i, u
		pool.Submit(ctx, func() {
			out := s.scrapeDetail(ctx, f, u)
			mu.Lock()
			outcomes[i] = out
			mu.Unlock()
		})
	}
	pool.Wait()
	return outcomes
}

func (s *Scraper) scrapeDetail(ctx context.Context, f fetcher.Fetcher, pageURL string) detailOutcome {
	s.logger.Debug("[olx] Fetching detail page %s", pageURL)

	html, err := f.Fetch(ctx, pageURL)
	if err != nil {
		s.logger.Error("[olx] Fetch failed for %s: %v", pageURL, err)
		return detailOutcome{done: true, failure: &models.PageFailure{URL: pageURL, Stage: models.StageFetch, Err: err}}
	}

	rec, err := s.parser.Parse(html, pageURL)
	if err != nil {
		s.logger.Error("[olx] Parse failed for %s: %v", pageURL, err)
		return detailOutcome{done: true, failure: &models.PageFailure{URL: pageURL, Stage: models.StageParse, Err: err}}
	}
	return detailOutcome{done: true, record: rec}
}
