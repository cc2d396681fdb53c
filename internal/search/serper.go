package search

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"
)

const serperEndpoint = "https://google.serper.dev/search"

type serperResponse struct {
	Organic []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// SerperProvider serves searches from the Serper REST API. Serper returns
// snippets rather than page bodies, so it is the thinner of the two
// providers and usually the fallback.
type SerperProvider struct {
	apiKey string
	client *resty.Client
}

func NewSerperProvider(apiKey string) *SerperProvider {
	return &SerperProvider{
		apiKey: apiKey,
		client: resty.New(),
	}
}

func (p *SerperProvider) Name() string { return "serper" }

func (p *SerperProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: serper api key not configured", ErrUnavailable)
	}

	var out serperResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", p.apiKey).
		SetBody(map[string]any{"q": query, "num": maxResults}).
		SetResult(&out).
		Post(serperEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: serper request: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: serper", ErrRateLimited)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: serper status %d", ErrUnavailable, resp.StatusCode())
	}

	results := make([]Result, 0, len(out.Organic))
	for i, r := range out.Organic {
		if i >= maxResults {
			break
		}
		results = append(results, Result{URL: r.Link, Title: r.Title, Content: r.Snippet})
	}
	return results, nil
}

func (p *SerperProvider) Close() error {
	return p.client.Close()
}
