// Package fetcher retrieves the raw markup of listing pages.
//
// A Fetcher is acquired once per scrape run through a Factory and released
// with Close when the run ends. Failures are reported as *Error so callers
// can tell a timeout from a block.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fetcher returns the rendered HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Close() error
}

// Factory creates the fetcher for one run.
type Factory func(ctx context.Context) (Fetcher, error)

// Kind classifies a fetch failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindHTTP
	KindBlocked
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	case KindBlocked:
		return "blocked"
	}
	return "unknown"
}

// Error is the typed failure every Fetcher returns.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrBlocked) and friends match on the kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.URL == "" && t.StatusCode == 0 && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrTimeout = &Error{Kind: KindTimeout}
	ErrHTTP    = &Error{Kind: KindHTTP}
	ErrBlocked = &Error{Kind: KindBlocked}
)

// IsBlocked reports whether err means the site refused to serve us.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// captchaMarkers are fragments of the challenge pages served instead of the
// listing when the site flags the client.
var captchaMarkers = []string{
	"captcha-delivery.com",
	"g-recaptcha",
	"cf-challenge",
	"px-captcha",
}

// classifyStatus turns a non-2xx status into a typed error.
func classifyStatus(url string, status int, cause error) *Error {
	if cause == nil {
		cause = fmt.Errorf("unexpected status %d", status)
	}
	kind := KindHTTP
	if status == 403 || status == 429 {
		kind = KindBlocked
	}
	return &Error{Kind: kind, URL: url, StatusCode: status, Err: cause}
}

// checkBody flags challenge pages that come back with a 200.
func checkBody(url, html string) error {
	lower := strings.ToLower(html)
	for _, marker := range captchaMarkers {
		if strings.Contains(lower, marker) {
			return &Error{Kind: KindBlocked, URL: url, Err: fmt.Errorf("challenge page (%s)", marker)}
		}
	}
	return nil
}

// fromContext maps a context failure to a timeout, or returns nil.
func fromContext(ctx context.Context, url string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	}
	return nil
}
