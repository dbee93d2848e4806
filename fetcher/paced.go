package fetcher

import (
	"context"

	"olx-car-scraper/utils"
)

// Paced spaces every request made through it with a shared limiter. Placed
// under Retrying, retries are paced like any other request.
type Paced struct {
	inner   Fetcher
	limiter *utils.RateLimiter
}

// WithPacing decorates f. Every caller of the physical fetcher must go
// through the same Paced value (or at least the same limiter).
func WithPacing(f Fetcher, limiter *utils.RateLimiter) *Paced {
	return &Paced{inner: f, limiter: limiter}
}

func (p *Paced) Fetch(ctx context.Context, url string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.inner.Fetch(ctx, url)
}

func (p *Paced) Close() error {
	return p.inner.Close()
}
