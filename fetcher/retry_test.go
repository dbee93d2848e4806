package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedFetcher struct {
	errs   []error
	calls  int
	closed bool
}

func (s *scriptedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	return "<html></html>", nil
}

func (s *scriptedFetcher) Close() error {
	s.closed = true
	return nil
}

func TestRetryingRecoversFromTimeout(t *testing.T) {
	inner := &scriptedFetcher{errs: []error{&Error{Kind: KindTimeout, URL: "u", Err: context.DeadlineExceeded}}}
	f := WithRetry(inner, 3, time.Millisecond, quietLogger())

	html, err := f.Fetch(context.Background(), "u")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if html == "" || inner.calls != 2 {
		t.Errorf("got html %q after %d calls; want content after 2", html, inner.calls)
	}
}

func TestRetryingDoesNotRetryBlocked(t *testing.T) {
	blocked := &Error{Kind: KindBlocked, URL: "u", StatusCode: 403, Err: errors.New("forbidden")}
	inner := &scriptedFetcher{errs: []error{blocked, blocked, blocked}}
	f := WithRetry(inner, 3, time.Millisecond, quietLogger())

	_, err := f.Fetch(context.Background(), "u")
	if !IsBlocked(err) {
		t.Fatalf("expected blocked, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d; want 1", inner.calls)
	}
}

func TestRetryingDoesNotRetryNotFound(t *testing.T) {
	notFound := &Error{Kind: KindHTTP, URL: "u", StatusCode: 404, Err: errors.New("not found")}
	inner := &scriptedFetcher{errs: []error{notFound, notFound}}
	f := WithRetry(inner, 3, time.Millisecond, quietLogger())

	if _, err := f.Fetch(context.Background(), "u"); !errors.Is(err, ErrHTTP) {
		t.Fatalf("expected http error, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d; want 1", inner.calls)
	}
}

func TestRetryingKeepsTypedErrorAfterGivingUp(t *testing.T) {
	timeout := &Error{Kind: KindTimeout, URL: "u", Err: context.DeadlineExceeded}
	inner := &scriptedFetcher{errs: []error{timeout, timeout}}
	f := WithRetry(inner, 2, time.Millisecond, quietLogger())

	_, err := f.Fetch(context.Background(), "u")
	var fe *Error
	if !errors.As(err, &fe) || fe.Kind != KindTimeout {
		t.Fatalf("expected *Error with timeout kind, got %v", err)
	}

	if err := f.Close(); err != nil || !inner.closed {
		t.Errorf("Close did not reach the inner fetcher")
	}
}
