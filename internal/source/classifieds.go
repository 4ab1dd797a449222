package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/donaldgifford/listing-notifier/internal/metrics"
	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// Site defaults.
const (
	DefaultSearchURL  = "https://classifieds.ksl.com/search/"
	DefaultListingURL = "https://classifieds.ksl.com/listing/"
	DefaultState      = "UT"
)

// ClassifiedsSource searches the classifieds site. Each Fetch builds the
// search URL from the query, loads it through a PageLoader and parses the
// embedded result payload.
type ClassifiedsSource struct {
	loader       PageLoader
	searchURL    string
	listingURL   string
	defaultState string
}

// ClassifiedsOption configures the ClassifiedsSource.
type ClassifiedsOption func(*ClassifiedsSource)

// WithSearchURL overrides the search endpoint. Mostly for tests and the mock
// server.
func WithSearchURL(u string) ClassifiedsOption {
	return func(s *ClassifiedsSource) {
		s.searchURL = u
	}
}

// WithListingURL overrides the prefix listing ids are appended to.
func WithListingURL(u string) ClassifiedsOption {
	return func(s *ClassifiedsSource) {
		s.listingURL = u
	}
}

// WithDefaultState sets the state used when a query names a city but no
// state.
func WithDefaultState(state string) ClassifiedsOption {
	return func(s *ClassifiedsSource) {
		s.defaultState = state
	}
}

// NewClassifiedsSource creates a ClassifiedsSource loading pages with loader.
func NewClassifiedsSource(loader PageLoader, opts ...ClassifiedsOption) *ClassifiedsSource {
	s := &ClassifiedsSource{
		loader:       loader,
		searchURL:    DefaultSearchURL,
		listingURL:   DefaultListingURL,
		defaultState: DefaultState,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch implements Source.
func (s *ClassifiedsSource) Fetch(ctx context.Context, q domain.Query) ([]domain.Listing, error) {
	u := s.SearchURL(q)
	key := q.Key()

	start := time.Now()
	page, err := s.loader.Load(ctx, u)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, s.fail(key, u, asFetchError(err, KindTransient))
	}

	listings, err := ParseSearchPage(page, s.listingURL)
	if err != nil {
		return nil, s.fail(key, u, &FetchError{Kind: KindPermanent, Err: fmt.Errorf("parsing search page: %w", err)})
	}

	metrics.ListingsFetchedTotal.Add(float64(len(listings)))
	return listings, nil
}

func (*ClassifiedsSource) fail(key, u string, fe *FetchError) *FetchError {
	fe.Query = key
	if fe.URL == "" {
		fe.URL = u
	}
	metrics.FetchErrorsTotal.WithLabelValues(fe.Kind.String()).Inc()
	return fe
}

// SearchURL renders the search URL for q. The site takes its parameters as
// key/value path segments.
func (s *ClassifiedsSource) SearchURL(q domain.Query) string {
	q = q.Normalize()

	var b strings.Builder
	b.WriteString(strings.TrimRight(s.searchURL, "/"))
	b.WriteByte('/')

	seg := func(k, v string) {
		if v == "" {
			return
		}
		b.WriteString(k)
		b.WriteByte('/')
		b.WriteString(url.PathEscape(v))
		b.WriteByte('/')
	}
	num := func(n int) string {
		if n <= 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	bit := func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	}

	state := q.State
	if q.City != "" && state == "" {
		state = s.defaultState
	}

	seg("keyword", q.Terms)
	seg("priceFrom", num(q.MinPrice))
	seg("priceTo", num(q.MaxPrice))
	seg("nocache", "1")
	if q.ExpandSearch {
		seg("expandSearch", "1")
	}
	seg("zip", q.Zip)
	seg("miles", num(q.Miles))
	seg("sort", bit(q.Reverse))
	seg("sold", bit(q.IncludeSold))
	seg("city", q.City)
	seg("state", state)
	seg("subCategory", q.SubCategory)
	seg("category", q.Category)
	seg("perPage", num(q.PerPage))

	return b.String()
}
