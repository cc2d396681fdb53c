package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/agenthands/cartographer/internal/core/model"
)

// CollectorConfig bounds the fetch batch.
type CollectorConfig struct {
	MaxPerQuery    int
	Concurrency    int
	FetchTimeout   time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	RequestsPerSec float64
}

// Collector turns a batch of queries into documents. Queries in a batch run
// concurrently under a worker limit and a shared rate limiter; a failing
// query never cancels its siblings, and the batch returns whatever
// succeeded.
type Collector struct {
	primary  Provider
	fallback Provider // may be nil
	cfg      CollectorConfig
	limiter  *rate.Limiter
	log      *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewCollector(primary, fallback Provider, cfg CollectorConfig, log *zap.Logger) *Collector {
	if cfg.MaxPerQuery <= 0 {
		cfg.MaxPerQuery = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = 2
	}
	return &Collector{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
		log:      log,
		sleep:    sleepCtx,
	}
}

// Fetch runs the whole query batch and returns the successfully retrieved
// documents. The error is non-nil only when every query failed.
func (c *Collector) Fetch(ctx context.Context, queries []string) ([]model.Document, error) {
	var (
		mu   sync.Mutex
		docs []model.Document
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Concurrency)

	for _, query := range queries {
		query := query
		g.Go(func() error {
			batch, err := c.fetchOne(gctx, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Isolate the failure; siblings keep running.
				errs = append(errs, fmt.Errorf("query %q: %w", query, err))
				c.log.Warn("query fetch failed", zap.String("query", query), zap.Error(err))
				return nil
			}
			docs = append(docs, batch...)
			return nil
		})
	}
	_ = g.Wait()

	if len(docs) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", model.ErrProviderFailure, errors.Join(errs...))
	}
	return docs, nil
}

// fetchOne queries the primary provider with backoff on rate limits and a
// per-fetch timeout, switching to the fallback when the primary is
// unavailable.
func (c *Collector) fetchOne(ctx context.Context, query string) ([]model.Document, error) {
	results, err := c.searchWithRetry(ctx, c.primary, query)
	if err != nil && c.fallback != nil && errors.Is(err, ErrUnavailable) {
		c.log.Warn("primary provider unavailable, using fallback",
			zap.String("primary", c.primary.Name()),
			zap.String("fallback", c.fallback.Name()))
		results, err = c.searchWithRetry(ctx, c.fallback, query)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var docs []model.Document
	for _, r := range results {
		doc := model.Document{
			URL:         r.URL,
			Title:       r.Title,
			Text:        r.Content,
			Domain:      extractDomain(r.URL),
			RetrievedAt: now,
			QueryUsed:   query,
		}
		if err := doc.Validate(); err != nil {
			c.log.Debug("skipping unusable result", zap.String("url", r.URL), zap.Error(err))
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Collector) searchWithRetry(ctx context.Context, p Provider, query string) ([]Result, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		results, err := p.Search(fetchCtx, query, c.cfg.MaxPerQuery)
		cancel()

		if err == nil {
			return results, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, ErrRateLimited):
			backoff := c.cfg.InitialBackoff * (1 << attempt)
			c.log.Warn("rate limited, backing off",
				zap.String("provider", p.Name()),
				zap.Duration("backoff", backoff),
				zap.Int("attempt", attempt+1))
			if err := c.sleep(ctx, backoff); err != nil {
				return nil, err
			}
		case errors.Is(err, ErrUnavailable):
			return nil, err
		case errors.Is(err, context.DeadlineExceeded):
			// Abandoned in-flight call; retryable.
			c.log.Warn("fetch timed out", zap.String("provider", p.Name()), zap.Int("attempt", attempt+1))
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// DistinctDomains counts unique domains across documents.
func DistinctDomains(docs []model.Document) int {
	domains := make(map[string]bool, len(docs))
	for _, d := range docs {
		domains[d.Domain] = true
	}
	return len(domains)
}

func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
