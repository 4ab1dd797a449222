package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeLoader renders the page in headless Chrome before handing back the
// HTML. Use it when the site only fills in the search payload client-side.
type ChromeLoader struct {
	timeout     time.Duration
	userAgent   string
	waitReady   string
	execPath    string
	rateLimiter *RateLimiter
}

// ChromeLoaderOption configures the ChromeLoader.
type ChromeLoaderOption func(*ChromeLoader)

// WithChromeTimeout bounds a whole page render.
func WithChromeTimeout(d time.Duration) ChromeLoaderOption {
	return func(c *ChromeLoader) {
		c.timeout = d
	}
}

// WithChromeUserAgent overrides the browser User-Agent.
func WithChromeUserAgent(ua string) ChromeLoaderOption {
	return func(c *ChromeLoader) {
		c.userAgent = ua
	}
}

// WithChromeExecPath points at a specific Chrome/Chromium binary.
func WithChromeExecPath(path string) ChromeLoaderOption {
	return func(c *ChromeLoader) {
		c.execPath = path
	}
}

// WithChromeRateLimiter makes every Load go through r.Wait first.
func WithChromeRateLimiter(r *RateLimiter) ChromeLoaderOption {
	return func(c *ChromeLoader) {
		c.rateLimiter = r
	}
}

// NewChromeLoader creates a ChromeLoader.
func NewChromeLoader(opts ...ChromeLoaderOption) *ChromeLoader {
	c := &ChromeLoader{
		timeout:   30 * time.Second,
		userAgent: defaultUserAgent,
		waitReady: "body",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load implements PageLoader. Every call starts a fresh browser so a wedged
// tab cannot poison later iterations.
func (c *ChromeLoader) Load(ctx context.Context, u string) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, &FetchError{Kind: KindTransient, URL: u, Err: err}
		}
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(c.userAgent))
	if c.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(u),
		chromedp.WaitReady(c.waitReady, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, &FetchError{Kind: KindTransient, URL: u, Err: fmt.Errorf("rendering page: %w", err)}
	}

	return []byte(html), nil
}
