// Package search turns a query into an ordered list of candidate URLs.
package search

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a search backend lacks credentials
var ErrNotConfigured = errors.New("search backend not configured")

// Searcher returns candidate URLs for a query, best first. An empty result
// is not an error.
type Searcher interface {
	Query(ctx context.Context, text string) ([]string, error)
}

// SearcherFunc adapts a function to Searcher
type SearcherFunc func(ctx context.Context, text string) ([]string, error)

// Query calls f
func (f SearcherFunc) Query(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}
