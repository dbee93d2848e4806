package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"olx-car-scraper/utils"
)

func quietLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard, utils.LevelError)
}

func TestStaticFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("User-Agent = %q; want test-agent", ua)
		}
		fmt.Fprint(w, "<html><body><h1>BMW E30</h1></body></html>")
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{UserAgent: "test-agent", Timeout: 2 * time.Second}, quietLogger())
	html, err := f.Fetch(context.Background(), srv.URL+"/d/anuncio/bmw-IDabc.html")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(html, "<h1>BMW E30</h1>") {
		t.Errorf("unexpected body %q", html)
	}
}

func TestStaticFetchClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusNotFound, KindHTTP},
		{http.StatusInternalServerError, KindHTTP},
		{http.StatusForbidden, KindBlocked},
		{http.StatusTooManyRequests, KindBlocked},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		f := NewStatic(StaticConfig{Timeout: 2 * time.Second}, quietLogger())
		_, err := f.Fetch(context.Background(), srv.URL)
		srv.Close()

		var fe *Error
		if !errors.As(err, &fe) {
			t.Errorf("status %d: error %v is not *fetcher.Error", tt.status, err)
			continue
		}
		if fe.Kind != tt.want || fe.StatusCode != tt.status {
			t.Errorf("status %d: got kind %s status %d; want %s", tt.status, fe.Kind, fe.StatusCode, tt.want)
		}
	}
}

func TestStaticFetchDetectsChallengePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><script src="https://geo.captcha-delivery.com/captcha/"></script></html>`)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{Timeout: 2 * time.Second}, quietLogger())
	_, err := f.Fetch(context.Background(), srv.URL)
	if !IsBlocked(err) {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestStaticFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewStatic(StaticConfig{Timeout: 50 * time.Millisecond}, quietLogger())
	_, err := f.Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestErrorIsMatchesKindOnly(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindBlocked, URL: "https://x", StatusCode: 403, Err: errors.New("nope")})
	if !errors.Is(err, ErrBlocked) {
		t.Error("errors.Is(err, ErrBlocked) = false; want true")
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = true; want false")
	}
}
