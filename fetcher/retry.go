package fetcher

import (
	"context"
	"errors"
	"time"

	"olx-car-scraper/utils"
)

// Retrying wraps a Fetcher with exponential back-off. Blocked responses and
// caller cancellation are returned immediately.
type Retrying struct {
	inner Fetcher
	retry *utils.RetryConfig
}

// WithRetry decorates f. maxAttempts < 2 disables retrying.
func WithRetry(f Fetcher, maxAttempts int, baseDelay time.Duration, logger *utils.Logger) *Retrying {
	return &Retrying{
		inner: f,
		retry: &utils.RetryConfig{
			MaxAttempts: maxAttempts,
			BaseDelay:   baseDelay,
			Logger:      logger,
			Retryable:   retryable,
		},
	}
}

func (r *Retrying) Fetch(ctx context.Context, url string) (string, error) {
	var html string
	err := r.retry.Do(ctx, "fetch "+url, func() error {
		var err error
		html, err = r.inner.Fetch(ctx, url)
		return err
	})
	if err != nil {
		return "", err
	}
	return html, nil
}

func (r *Retrying) Close() error {
	return r.inner.Close()
}

func retryable(err error) bool {
	if IsBlocked(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTP && fe.StatusCode >= 400 && fe.StatusCode < 500 {
		return false
	}
	return true
}
