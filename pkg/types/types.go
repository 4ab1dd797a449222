// Package domain defines the core business types for the listing notifier.
package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Query is a saved classifieds search: terms plus filter options.
// A Query is treated as immutable once the loop starts.
type Query struct {
	Terms        string `json:"terms"                   yaml:"terms"`
	Category     string `json:"category,omitempty"      yaml:"category"`
	SubCategory  string `json:"sub_category,omitempty"  yaml:"sub_category"`
	MinPrice     int    `json:"min_price,omitempty"     yaml:"min_price"`
	MaxPrice     int    `json:"max_price,omitempty"     yaml:"max_price"`
	Zip          string `json:"zip,omitempty"           yaml:"zip"`
	City         string `json:"city,omitempty"          yaml:"city"`
	State        string `json:"state,omitempty"         yaml:"state"`
	Miles        int    `json:"miles,omitempty"         yaml:"miles"`
	Reverse      bool   `json:"reverse,omitempty"       yaml:"reverse"` // oldest first
	IncludeSold  bool   `json:"include_sold,omitempty"  yaml:"include_sold"`
	ExpandSearch bool   `json:"expand_search,omitempty" yaml:"expand_search"`
	PerPage      int    `json:"per_page,omitempty"      yaml:"per_page"`
}

// Normalize returns a copy with negative prices clamped to zero and the
// price range ordered low to high.
func (q Query) Normalize() Query {
	q.Terms = strings.TrimSpace(q.Terms)
	q.MinPrice = max(0, q.MinPrice)
	q.MaxPrice = max(0, q.MaxPrice)
	if q.MinPrice > 0 && q.MaxPrice > 0 && q.MinPrice > q.MaxPrice {
		q.MinPrice, q.MaxPrice = q.MaxPrice, q.MinPrice
	}
	return q
}

// Key returns the canonical rendered identity of the query. A query with no
// filters renders as its bare terms, so snapshots keyed by search term alone
// stay compatible.
func (q Query) Key() string {
	q = q.Normalize()

	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	itoa := func(n int) string {
		if n == 0 {
			return ""
		}
		return strconv.Itoa(n)
	}
	flag := func(b bool) string {
		if b {
			return "true"
		}
		return ""
	}

	add("category", q.Category)
	add("sub_category", q.SubCategory)
	add("min_price", itoa(q.MinPrice))
	add("max_price", itoa(q.MaxPrice))
	add("zip", q.Zip)
	add("city", q.City)
	add("state", q.State)
	add("miles", itoa(q.Miles))
	add("reverse", flag(q.Reverse))
	add("sold", flag(q.IncludeSold))
	add("expand", flag(q.ExpandSearch))
	add("per_page", itoa(q.PerPage))

	if len(parts) == 0 {
		return q.Terms
	}
	return fmt.Sprintf("%s [%s]", q.Terms, strings.Join(parts, " "))
}

// Listing is a single classified ad as returned by a listing source. It is
// produced fresh on every fetch and never mutated afterwards.
type Listing struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Price       *float64   `json:"price,omitempty"`
	Description string     `json:"description,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	City        string     `json:"city,omitempty"`
	State       string     `json:"state,omitempty"`
}

// PriceString formats the price for display. Listings without a price
// render as "-".
func (l *Listing) PriceString() string {
	if l.Price == nil {
		return "-"
	}
	return strconv.FormatFloat(*l.Price, 'f', -1, 64)
}

// Location returns "city, state", or whichever half is known.
func (l *Listing) Location() string {
	switch {
	case l.City != "" && l.State != "":
		return l.City + ", " + l.State
	case l.City != "":
		return l.City
	default:
		return l.State
	}
}

// QueryStatus reports the seen-set size for one query.
type QueryStatus struct {
	Key   string `json:"key"`
	Terms string `json:"terms"`
	Seen  int    `json:"seen"`
}

// Status is a read-only snapshot of the poll loop.
type Status struct {
	Score           int           `json:"score"`
	FatalCeiling    int           `json:"fatal_ceiling"`
	Failures        int           `json:"consecutive_failures"`
	Iterations      int64         `json:"iterations"`
	LastIterationAt *time.Time    `json:"last_iteration_at,omitempty"`
	LastError       string        `json:"last_error,omitempty"`
	Queries         []QueryStatus `json:"queries"`
}
