package search

import (
	"context"
	"errors"
)

// Result is one raw search hit before it becomes a Document.
type Result struct {
	URL     string
	Title   string
	Content string
}

// Provider is the external source-retrieval contract.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}

var (
	// ErrUnavailable means the provider cannot serve at all; the collector
	// switches to the fallback provider.
	ErrUnavailable = errors.New("search provider unavailable")

	// ErrRateLimited means the provider throttled us; the collector backs
	// off exponentially, up to its retry budget.
	ErrRateLimited = errors.New("search provider rate limited")
)
