package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultUserAgent    = "Mozilla/5.0"
	defaultFetchTimeout = 5 * time.Second
	defaultRetryAfter   = time.Minute
	maxPageBytes        = 10 << 20
)

// PageLoader retrieves the raw HTML of a search page. Errors are *FetchError.
type PageLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// HTTPLoader loads pages with a plain HTTP GET.
type HTTPLoader struct {
	client      *http.Client
	userAgent   string
	rateLimiter *RateLimiter
}

// HTTPLoaderOption configures the HTTPLoader.
type HTTPLoaderOption func(*HTTPLoader)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		l.client = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		l.userAgent = ua
	}
}

// WithFetchTimeout sets the per-request timeout of the default client.
func WithFetchTimeout(d time.Duration) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		l.client.Timeout = d
	}
}

// WithRateLimiter makes every Load go through r.Wait first.
func WithRateLimiter(r *RateLimiter) HTTPLoaderOption {
	return func(l *HTTPLoader) {
		l.rateLimiter = r
	}
}

// NewHTTPLoader creates an HTTPLoader with a cookie jar and a traced
// transport.
func NewHTTPLoader(opts ...HTTPLoaderOption) *HTTPLoader {
	jar, _ := cookiejar.New(nil) // only fails with a bad PublicSuffixList
	l := &HTTPLoader{
		client: &http.Client{
			Timeout:   defaultFetchTimeout,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements PageLoader.
func (l *HTTPLoader) Load(ctx context.Context, u string) ([]byte, error) {
	if l.rateLimiter != nil {
		if err := l.rateLimiter.Wait(ctx); err != nil {
			return nil, &FetchError{Kind: KindTransient, URL: u, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, &FetchError{Kind: KindPermanent, URL: u, Err: fmt.Errorf("creating HTTP request: %w", err)}
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		// Timeouts, refused connections and DNS hiccups are all worth
		// another try next iteration.
		return nil, &FetchError{Kind: KindTransient, URL: u, Err: fmt.Errorf("executing search request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &FetchError{Kind: KindTransient, URL: u, Err: fmt.Errorf("reading response body: %w", err)}
	}

	if err := l.checkStatus(resp); err != nil {
		return nil, err
	}

	return body, nil
}

func (l *HTTPLoader) checkStatus(resp *http.Response) error {
	u := resp.Request.URL.String()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := retryAfter(resp.Header.Get("Retry-After"))
		if l.rateLimiter != nil {
			l.rateLimiter.Penalize(wait)
		}
		return &FetchError{Kind: KindTransient, URL: u, Err: fmt.Errorf("%w (retry after %s)", ErrRateLimited, wait)}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &FetchError{Kind: KindTransient, URL: u, Err: fmt.Errorf("site returned %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &FetchError{Kind: KindPermanent, URL: u, Err: fmt.Errorf("site returned %d", resp.StatusCode)}
	}
	return nil
}

// retryAfter parses a Retry-After header in its delta-seconds form. Missing
// or unparsable values fall back to a minute.
func retryAfter(v string) time.Duration {
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return defaultRetryAfter
}

// asFetchError returns err as a *FetchError, wrapping it with kind when it
// is not one already.
func asFetchError(err error, kind Kind) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: kind, Err: err}
}
