// Package pipeline wires source adapters, the normalizer, and the
// store into batch runs.
package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/model"
	"github.com/northcounty/propsync/internal/normalize"
	"github.com/northcounty/propsync/internal/scrape"
	"github.com/northcounty/propsync/internal/source"
	"github.com/northcounty/propsync/internal/store"
)

// Summary reports what one batch run did.
type Summary struct {
	Fetched        int  `json:"fetched"`
	Upserted       int  `json:"upserted"`
	Dropped        int  `json:"dropped"` // records with no usable identity
	Failed         int  `json:"failed"`
	Sold           int  `json:"sold"`
	Active         int  `json:"active"`
	Pending        int  `json:"pending"`
	Verified       int  `json:"verified"`
	QuotaExhausted bool `json:"quota_exhausted,omitempty"`
}

// PriceScraper recovers a price history for a listing URL.
type PriceScraper interface {
	Scrape(ctx context.Context, url string) (*scrape.PriceHistory, error)
}

// Runner executes batch collection runs against a store.
type Runner struct {
	norm  *normalize.Normalizer
	store store.Store
}

// NewRunner creates a Runner.
func NewRunner(norm *normalize.Normalizer, st store.Store) *Runner {
	return &Runner{norm: norm, store: st}
}

// CollectRegions pulls listings for each region query and upserts the
// normalized records. A failed region is logged and skipped; the run
// continues with the next one.
func (r *Runner) CollectRegions(ctx context.Context, searcher source.RegionSearcher, queries []source.RegionQuery) (*Summary, error) {
	log := zap.L().With(
		zap.String("component", "pipeline.collect"),
		zap.String("source", searcher.Name()),
	)
	sum := &Summary{}

	for _, q := range queries {
		recs, err := searcher.SearchRegion(ctx, q)
		if err != nil {
			log.Warn("region search failed, skipping",
				zap.String("region_id", q.RegionID),
				zap.String("status", string(q.Status)),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}
		log.Info("region fetched",
			zap.String("region_id", q.RegionID),
			zap.String("status", string(q.Status)),
			zap.Int("records", len(recs)),
		)
		for i := range recs {
			r.process(ctx, log, &recs[i], sum)
		}
	}

	log.Info("collect run complete",
		zap.Int("fetched", sum.Fetched),
		zap.Int("upserted", sum.Upserted),
		zap.Int("dropped", sum.Dropped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

// CollectAddresses fetches one record per address query from a
// metered source. The loop stops at the first ErrQuotaExhausted so a
// long address list cannot burn the remaining monthly budget on
// calls that will all fail.
func (r *Runner) CollectAddresses(ctx context.Context, fetcher source.PropertyFetcher, queries []source.AddressQuery) (*Summary, error) {
	log := zap.L().With(
		zap.String("component", "pipeline.collect"),
		zap.String("source", fetcher.Name()),
	)
	sum := &Summary{}

	for _, q := range queries {
		rec, err := fetcher.FetchByAddress(ctx, q)
		if errors.Is(err, source.ErrQuotaExhausted) {
			log.Warn("request quota exhausted, stopping early",
				zap.String("address", q.Address),
				zap.Int("remaining_queries", len(queries)-sum.Fetched-sum.Failed),
			)
			sum.QuotaExhausted = true
			break
		}
		if err != nil {
			log.Warn("address fetch failed, skipping",
				zap.String("address", q.Address),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}
		if rec == nil {
			log.Debug("address not found", zap.String("address", q.Address))
			sum.Dropped++
			continue
		}
		r.process(ctx, log, rec, sum)
	}

	log.Info("collect run complete",
		zap.Int("fetched", sum.Fetched),
		zap.Int("upserted", sum.Upserted),
		zap.Int("dropped", sum.Dropped),
		zap.Int("failed", sum.Failed),
		zap.Bool("quota_exhausted", sum.QuotaExhausted),
	)
	return sum, nil
}

// process normalizes and upserts one record, counting the outcome.
func (r *Runner) process(ctx context.Context, log *zap.Logger, rec *model.RawRecord, sum *Summary) {
	sum.Fetched++

	p, err := r.norm.Normalize(rec)
	if errors.Is(err, normalize.ErrNoIdentity) {
		log.Warn("record has no identity, dropping", zap.String("source", rec.Source))
		sum.Dropped++
		return
	}
	if err != nil {
		log.Warn("normalize failed", zap.String("address", rec.Address), zap.Error(err))
		sum.Failed++
		return
	}

	// Sources key the same house differently. Reuse the id of an
	// existing row at this address so the upsert coalesces into one
	// record instead of creating a duplicate.
	if existing, err := r.store.GetByAddress(ctx, p.Address); err == nil {
		if existing.PropertyID != p.PropertyID {
			log.Debug("merging into existing row at address",
				zap.String("address", p.Address),
				zap.String("property_id", existing.PropertyID),
				zap.String("incoming_id", p.PropertyID),
			)
			p.PropertyID = existing.PropertyID
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Warn("address lookup failed", zap.String("address", p.Address), zap.Error(err))
		sum.Failed++
		return
	}

	if err := r.store.Upsert(ctx, p); err != nil {
		log.Warn("upsert failed", zap.String("property_id", p.PropertyID), zap.Error(err))
		sum.Failed++
		return
	}

	sum.Upserted++
	switch p.Status {
	case model.StatusSold:
		sum.Sold++
	case model.StatusPending:
		sum.Pending++
	default:
		sum.Active++
	}
	if p.Verified {
		sum.Verified++
	}
}

// EnrichSummary reports one price-enrichment run over sold rows.
type EnrichSummary struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"` // no source URL to scrape
	Failed  int `json:"failed"`
}

// EnrichSoldPrices scrapes listing pages for sold rows that are
// missing an asking price and writes any recovered one back. Scraped
// prices are unverified, so verified rows are left alone.
func (r *Runner) EnrichSoldPrices(ctx context.Context, scraper PriceScraper) (*EnrichSummary, error) {
	log := zap.L().With(zap.String("component", "pipeline.enrich"))

	sold, err := r.store.ListSold(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list sold properties")
	}

	sum := &EnrichSummary{}
	for i := range sold {
		p := &sold[i]
		if p.AskingPrice != nil || p.Verified {
			continue
		}
		sum.Scanned++

		if p.SourceURL == "" {
			log.Debug("no source url, skipping", zap.String("property_id", p.PropertyID))
			sum.Skipped++
			continue
		}

		hist, err := scraper.Scrape(ctx, p.SourceURL)
		if err != nil || hist.Empty() || hist.ListingPrice <= 0 {
			log.Debug("no listing price recovered",
				zap.String("property_id", p.PropertyID),
				zap.String("url", p.SourceURL),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}

		if err := r.store.SetAskingPrice(ctx, p.PropertyID, hist.ListingPrice); err != nil {
			log.Warn("write scraped price failed",
				zap.String("property_id", p.PropertyID),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}
		log.Info("recovered asking price",
			zap.String("property_id", p.PropertyID),
			zap.String("address", p.Address),
			zap.Float64("asking_price", hist.ListingPrice),
			zap.String("extractor", hist.Source),
		)
		sum.Updated++
	}

	log.Info("enrich run complete",
		zap.Int("scanned", sum.Scanned),
		zap.Int("updated", sum.Updated),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}
