package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dougneedham/lossdev/internal/cache"
	"github.com/dougneedham/lossdev/internal/model"
	"github.com/dougneedham/lossdev/internal/worker"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      model.Duration(5 * time.Second),
		UserAgent:    "test-agent",
		MaxBodyBytes: 1 << 20,
		Retries:      3,
	}
}

func stubSleep(t *testing.T) {
	t.Helper()
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != "test-agent" {
			t.Errorf("expected test-agent user agent, got %q", ua)
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = fmt.Fprint(w, "loss_date,paid\n2012-06-01,100\n")
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), worker.NewLimiter(100, 1), nil)
	result, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(result.Body) != "loss_date,paid\n2012-06-01,100\n" {
		t.Errorf("unexpected body: %q", result.Body)
	}
	if result.Cached {
		t.Error("expected uncached result")
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "loss_date,paid\n")
	}))
	defer server.Close()

	stubSleep(t)

	fetcher := NewFetcher(testHTTPConfig(), nil, nil)
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if string(result.Body) != "loss_date,paid\n" {
		t.Errorf("unexpected body: %q", result.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	stubSleep(t)

	fetcher := NewFetcher(testHTTPConfig(), nil, nil)
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected no retry for 404, got %d attempts", attempts.Load())
	}
	if got := err.Error(); got != "unexpected status: 404 Not Found" {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	stubSleep(t)

	fetcher := NewFetcher(testHTTPConfig(), nil, nil)
	_, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("expected attempt count in error, got %v", err)
	}
}

func TestFetchWithRetry_429Retried(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprint(w, "loss_date,paid\n")
	}))
	defer server.Close()

	stubSleep(t)

	fetcher := NewFetcher(testHTTPConfig(), nil, nil)
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("expected success after 429 retry, got %v", err)
	}
	if len(result.Body) == 0 {
		t.Error("expected a body")
	}
	if attempts.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestFetcher_BodyOverCapFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("x", 200))
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.MaxBodyBytes = 100

	fetcher := NewFetcher(cfg, nil, nil)
	_, err := fetcher.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for body over the cap")
	}
	if !strings.Contains(err.Error(), "100 byte limit") {
		t.Errorf("expected limit in error, got %v", err)
	}
}

func TestFetcher_CacheHit(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = fmt.Fprint(w, "loss_date,paid\n")
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), nil, cache.NewMemoryCache(time.Minute, time.Minute))

	first, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if first.Cached {
		t.Error("expected first fetch uncached")
	}

	second, err := fetcher.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !second.Cached {
		t.Error("expected second fetch cached")
	}
	if string(second.Body) != string(first.Body) {
		t.Error("expected identical bodies")
	}
	if requests.Load() != 1 {
		t.Errorf("expected 1 network request, got %d", requests.Load())
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"503", &statusError{Code: 503, Status: "503 Service Unavailable"}, true},
		{"500 wrapped", fmt.Errorf("fetch %s: %w", "x", &statusError{Code: 500, Status: "500 Internal Server Error"}), true},
		{"429", &statusError{Code: 429, Status: "429 Too Many Requests"}, true},
		{"404", &statusError{Code: 404, Status: "404 Not Found"}, false},
		{"403", &statusError{Code: 403, Status: "403 Forbidden"}, false},
		{"transport", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "http://x", Err: fmt.Errorf("connection refused")}), true},
		{"canceled", fmt.Errorf("rate limit: %w", context.Canceled), false},
		{"body read", fmt.Errorf("read body: unexpected EOF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
