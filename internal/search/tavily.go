package search

import (
	"context"
	"fmt"
	"net/http"

	"resty.dev/v3"
)

const tavilyEndpoint = "https://api.tavily.com/search"

type tavilyRequest struct {
	APIKey            string `json:"api_key"`
	Query             string `json:"query"`
	SearchDepth       string `json:"search_depth"`
	MaxResults        int    `json:"max_results"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		URL        string `json:"url"`
		Title      string `json:"title"`
		Content    string `json:"content"`
		RawContent string `json:"raw_content"`
	} `json:"results"`
}

// TavilyProvider serves searches from the Tavily REST API.
type TavilyProvider struct {
	apiKey string
	client *resty.Client
}

func NewTavilyProvider(apiKey string) *TavilyProvider {
	return &TavilyProvider{
		apiKey: apiKey,
		client: resty.New(),
	}
}

func (p *TavilyProvider) Name() string { return "tavily" }

func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: tavily api key not configured", ErrUnavailable)
	}

	var out tavilyResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(tavilyRequest{
			APIKey:            p.apiKey,
			Query:             query,
			SearchDepth:       "advanced",
			MaxResults:        maxResults,
			IncludeRawContent: true,
		}).
		SetResult(&out).
		Post(tavilyEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: tavily request: %v", ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: tavily", ErrRateLimited)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: tavily status %d", ErrUnavailable, resp.StatusCode())
	}

	results := make([]Result, 0, len(out.Results))
	for _, r := range out.Results {
		content := r.RawContent
		if content == "" {
			content = r.Content
		}
		results = append(results, Result{URL: r.URL, Title: r.Title, Content: content})
	}
	return results, nil
}

func (p *TavilyProvider) Close() error {
	return p.client.Close()
}
