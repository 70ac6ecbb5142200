package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain fetches a listing page once and tries extractors in priority
// order, returning the first success.
type Chain struct {
	fetcher    Fetcher
	extractors []Extractor
}

// NewChain creates a Chain with the given fetcher and extractors.
// Extractors are tried in order; the first usable result is returned.
func NewChain(fetcher Fetcher, extractors ...Extractor) *Chain {
	if len(extractors) == 0 {
		extractors = []Extractor{DOMExtractor{}, StateExtractor{}}
	}
	return &Chain{fetcher: fetcher, extractors: extractors}
}

// Scrape fetches the listing URL and runs the extractor chain.
// All-extractors-failed is an error; callers treat it as "no data"
// and move on.
func (c *Chain) Scrape(ctx context.Context, url string) (*PriceHistory, error) {
	html, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", url)
	}
	return c.ExtractFrom(html, url)
}

// ExtractFrom runs the extractor chain over already-fetched HTML.
func (c *Chain) ExtractFrom(html, url string) (*PriceHistory, error) {
	var lastErr error
	for _, e := range c.extractors {
		h, err := e.Extract(html)
		if err == nil && !h.Empty() {
			zap.L().Debug("scrape: extracted price history",
				zap.String("url", url),
				zap.String("extractor", e.Name()),
				zap.Float64("listing_price", h.ListingPrice),
				zap.Float64("sold_price", h.SoldPrice),
			)
			return h, nil
		}
		if err != nil {
			zap.L().Debug("scrape: extractor failed, trying next",
				zap.String("extractor", e.Name()),
				zap.String("url", url),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all extractors failed")
	}
	return nil, eris.Errorf("scrape: no extractor produced prices for %s", url)
}
