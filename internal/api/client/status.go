package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/donaldgifford/listing-notifier/internal/api/handlers"
	domain "github.com/donaldgifford/listing-notifier/pkg/types"
)

// Status returns the poll loop status.
func (c *Client) Status(ctx context.Context) (*domain.Status, error) {
	var st domain.Status
	if err := c.get(ctx, "/api/v1/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Queries returns the configured queries with their keys.
func (c *Client) Queries(ctx context.Context) ([]handlers.QueryView, error) {
	var qs []handlers.QueryView
	if err := c.get(ctx, "/api/v1/queries", &qs); err != nil {
		return nil, err
	}
	return qs, nil
}

// Query returns the status of the query with the given key.
func (c *Client) Query(ctx context.Context, key string) (*domain.QueryStatus, error) {
	var qs domain.QueryStatus
	if err := c.get(ctx, "/api/v1/queries/"+url.PathEscape(key), &qs); err != nil {
		return nil, err
	}
	return &qs, nil
}

// Ready reports whether the loop has completed its first iteration. A 503
// from /readyz is not an error.
func (c *Client) Ready(ctx context.Context) (bool, error) {
	err := c.get(ctx, "/readyz", nil)
	var apiErr *APIError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable:
		return false, nil
	default:
		return false, err
	}
}
