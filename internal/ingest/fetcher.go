package ingest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dougneedham/lossdev/internal/cache"
	"github.com/dougneedham/lossdev/internal/model"
	"github.com/dougneedham/lossdev/internal/util"
	"github.com/dougneedham/lossdev/internal/worker"
)

// fetchSleepFunc is swapped out in tests to skip retry backoff.
var fetchSleepFunc = time.Sleep

// Fetcher downloads remote loss-run extracts with per-host rate limiting
// and an optional fetch cache.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	retries    int
	limiter    *worker.Limiter
	cache      cache.Cache // nil disables caching
}

// NewFetcher creates a fetcher from the HTTP configuration. limiter and
// fetchCache may be nil.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter, fetchCache cache.Cache) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout.Std(),
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBodyBytes,
		retries:   cfg.Retries,
		limiter:   limiter,
		cache:     fetchCache,
	}
}

// FetchResult is a downloaded source body.
type FetchResult struct {
	Body   []byte
	Cached bool
}

// statusError reports a non-2xx response, keeping the code for retry
// decisions.
type statusError struct {
	Code   int
	Status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

// Fetch retrieves one URL, serving from the cache when possible. A body
// larger than the configured cap is an error, not a truncation: a partial
// loss run would silently understate the triangle.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.Key(rawURL)
	if f.cache != nil {
		if body, found := f.cache.Get(key); found {
			return &FetchResult{Body: body, Cached: true}, nil
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/csv,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("body exceeds %d byte limit", f.maxBytes)
	}

	if f.cache != nil {
		_ = f.cache.Set(key, body)
	}

	return &FetchResult{Body: body}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, transport errors)
// with exponential backoff. The retry count bounds total attempts.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	attempts := f.retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc((500 * time.Millisecond) << (attempt - 1))
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

// isRetryableFetchError reports whether another attempt could help: server
// errors, throttling, and transport failures qualify; client errors,
// cancellation, and body handling failures do not.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var status *statusError
	if errors.As(err, &status) {
		return status.Code == http.StatusTooManyRequests || status.Code >= 500
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
