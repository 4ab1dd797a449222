// Package source provides listing sources: the pluggable "fetch the current
// result set for a query" collaborator of the poll loop, plus the classifieds
// site adapter behind it.
package source

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// Source returns the listings currently matching a query, in the order the
// query's sort requests. Errors are *FetchError.
type Source interface {
	Fetch(ctx context.Context, q domain.Query) ([]domain.Listing, error)
}

var (
	// ErrUnexpectedShape means the response no longer matches the structure
	// the parser expects. It usually recurs every iteration.
	ErrUnexpectedShape = errors.New("unexpected response shape")

	// ErrRateLimited means the upstream asked us to slow down.
	ErrRateLimited = errors.New("rate limited")
)

// Kind classifies a fetch failure.
type Kind int

// Fetch failure kinds.
const (
	KindTransient Kind = iota
	KindPermanent
)

func (k Kind) String() string {
	if k == KindPermanent {
		return "permanent"
	}
	return "transient"
}

// FetchError is returned by every Source and PageLoader in this package.
type FetchError struct {
	Kind  Kind
	Query string
	URL   string
	Err   error
}

func (e *FetchError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("fetching %q (%s): %v", e.Query, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetching %s (%s): %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient wraps err as a transient fetch failure.
func Transient(err error) *FetchError {
	return &FetchError{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a permanent fetch failure.
func Permanent(err error) *FetchError {
	return &FetchError{Kind: KindPermanent, Err: err}
}

// KindOf returns the kind of the first FetchError in err's chain. Errors that
// are not fetch errors count as transient.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// IsTransient reports whether err is a fetch error worth retrying quietly.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == KindTransient
}
