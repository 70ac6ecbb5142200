package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/northcounty/propsync/internal/config"
	"github.com/northcounty/propsync/internal/corrections"
	"github.com/northcounty/propsync/internal/model"
	"github.com/northcounty/propsync/internal/normalize"
	"github.com/northcounty/propsync/internal/scrape"
	"github.com/northcounty/propsync/internal/source"
	"github.com/northcounty/propsync/internal/store"
)

func testNormalizeConfig() config.NormalizeConfig {
	return config.NormalizeConfig{
		DefaultAcres:    0.5,
		FallbackLabel:   "Westchester County",
		CentroidLat:     41.2048,
		CentroidLng:     -73.7032,
		DefaultLocation: "Mount Kisco, NY",
	}
}

func newTestRunner(t *testing.T) (*Runner, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	norm := normalize.New(testNormalizeConfig(), nil)
	return NewRunner(norm, st), st
}

type fakeSearcher struct {
	recs map[string][]model.RawRecord
	errs map[string]error
}

func (f *fakeSearcher) Name() string { return "fake-search" }

func (f *fakeSearcher) SearchRegion(_ context.Context, q source.RegionQuery) ([]model.RawRecord, error) {
	if err := f.errs[q.RegionID]; err != nil {
		return nil, err
	}
	return f.recs[q.RegionID], nil
}

type fakeFetcher struct {
	quota *source.Quota
	recs  map[string]*model.RawRecord
	errs  map[string]error
}

func (f *fakeFetcher) Name() string { return "fake-fetch" }

func (f *fakeFetcher) FetchByAddress(_ context.Context, q source.AddressQuery) (*model.RawRecord, error) {
	if f.quota != nil {
		if err := f.quota.Take(); err != nil {
			return nil, err
		}
	}
	if err := f.errs[q.Address]; err != nil {
		return nil, err
	}
	return f.recs[q.Address], nil
}

func rawRecord(addr string) model.RawRecord {
	return model.RawRecord{
		PropertyID: "id-" + addr,
		Address:    addr,
		City:       "Mount Kisco",
		State:      "NY",
		Beds:       3,
		Baths:      2,
		Sqft:       1800,
		Price:      750000,
		Source:     "fake",
	}
}

func TestCollectRegions(t *testing.T) {
	r, st := newTestRunner(t)

	searcher := &fakeSearcher{recs: map[string][]model.RawRecord{
		"6_12517": {rawRecord("1 First St"), rawRecord("2 Second St")},
		"6_12518": {rawRecord("3 Third St")},
	}}

	sum, err := r.CollectRegions(context.Background(), searcher, []source.RegionQuery{
		{RegionID: "6_12517", Status: model.StatusActive},
		{RegionID: "6_12518", Status: model.StatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Fetched)
	assert.Equal(t, 3, sum.Upserted)
	assert.Equal(t, 3, sum.Active)
	assert.Equal(t, 0, sum.Failed)

	props, err := st.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, props, 3)
}

func TestCollectRegionsSkipsFailedRegion(t *testing.T) {
	r, _ := newTestRunner(t)

	searcher := &fakeSearcher{
		recs: map[string][]model.RawRecord{"6_12518": {rawRecord("3 Third St")}},
		errs: map[string]error{"6_12517": fmt.Errorf("upstream 500")},
	}

	sum, err := r.CollectRegions(context.Background(), searcher, []source.RegionQuery{
		{RegionID: "6_12517", Status: model.StatusActive},
		{RegionID: "6_12518", Status: model.StatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Upserted)
}

func TestCollectRegionsDropsRecordsWithoutIdentity(t *testing.T) {
	r, _ := newTestRunner(t)

	searcher := &fakeSearcher{recs: map[string][]model.RawRecord{
		"6_12517": {rawRecord("1 First St"), {City: "Mount Kisco", Source: "fake"}},
	}}

	sum, err := r.CollectRegions(context.Background(), searcher, []source.RegionQuery{
		{RegionID: "6_12517", Status: model.StatusActive},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Fetched)
	assert.Equal(t, 1, sum.Upserted)
	assert.Equal(t, 1, sum.Dropped)
}

func TestCollectWarnsOnDroppedRecord(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)

	r, _ := newTestRunner(t)

	searcher := &fakeSearcher{recs: map[string][]model.RawRecord{
		"6_12517": {{City: "Mount Kisco", Source: "fake"}},
	}}
	_, err := r.CollectRegions(context.Background(), searcher, []source.RegionQuery{
		{RegionID: "6_12517", Status: model.StatusActive},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("record has no identity, dropping").Len())
}

func TestCollectAddresses(t *testing.T) {
	r, st := newTestRunner(t)

	recs := map[string]*model.RawRecord{}
	var queries []source.AddressQuery
	for i := 1; i <= 10; i++ {
		addr := fmt.Sprintf("%d Oak Ln", i)
		rec := rawRecord(addr)
		recs[addr] = &rec
		queries = append(queries, source.AddressQuery{Address: addr, City: "Mount Kisco", State: "NY"})
	}

	fetcher := &fakeFetcher{
		recs: recs,
		errs: map[string]error{"5 Oak Ln": fmt.Errorf("connection reset")},
	}

	sum, err := r.CollectAddresses(context.Background(), fetcher, queries)
	require.NoError(t, err)
	assert.Equal(t, 9, sum.Fetched)
	assert.Equal(t, 9, sum.Upserted)
	assert.Equal(t, 1, sum.Failed)
	assert.False(t, sum.QuotaExhausted)

	props, err := st.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, props, 9)
}

func TestCollectAddressesStopsOnQuotaExhaustion(t *testing.T) {
	r, _ := newTestRunner(t)

	recs := map[string]*model.RawRecord{}
	var queries []source.AddressQuery
	for i := 1; i <= 5; i++ {
		addr := fmt.Sprintf("%d Oak Ln", i)
		rec := rawRecord(addr)
		recs[addr] = &rec
		queries = append(queries, source.AddressQuery{Address: addr})
	}

	fetcher := &fakeFetcher{quota: source.NewQuota(3), recs: recs}

	sum, err := r.CollectAddresses(context.Background(), fetcher, queries)
	require.NoError(t, err)
	assert.True(t, sum.QuotaExhausted)
	assert.Equal(t, 3, sum.Upserted)
}

func TestCollectMergesSourcesAtSameAddress(t *testing.T) {
	r, st := newTestRunner(t)
	ctx := context.Background()

	// Bulk search first: active listing keyed by the vendor's id.
	listing := rawRecord("185 Harriman Rd")
	listing.PropertyID = "redfin-147200992"
	searcher := &fakeSearcher{recs: map[string][]model.RawRecord{
		"6_12517": {listing},
	}}
	_, err := r.CollectRegions(ctx, searcher, []source.RegionQuery{
		{RegionID: "6_12517", Status: model.StatusActive},
	})
	require.NoError(t, err)

	// Metered fetch second: same house, different id, carries the
	// sale outcome.
	sale := rawRecord("185 Harriman Rd")
	sale.PropertyID = "attom-184713191"
	sale.SoldPrice = 915000
	sale.StatusText = "SOLD"
	fetcher := &fakeFetcher{recs: map[string]*model.RawRecord{"185 Harriman Rd": &sale}}

	sum, err := r.CollectAddresses(ctx, fetcher, []source.AddressQuery{
		{Address: "185 Harriman Rd", City: "Mount Kisco", State: "NY"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Upserted)
	assert.Equal(t, 0, sum.Failed)

	// One row, keyed by the first id, holding both sources' fields.
	props, err := st.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, props, 1)

	got := props[0]
	assert.Equal(t, "redfin-147200992", got.PropertyID)
	assert.Equal(t, model.StatusSold, got.Status)
	require.NotNil(t, got.SoldPrice)
	assert.Equal(t, 915000.0, *got.SoldPrice)
	require.NotNil(t, got.AskingPrice)
	assert.Equal(t, 750000.0, *got.AskingPrice)
}

func TestCollectAddressesNotFoundIsDropped(t *testing.T) {
	r, _ := newTestRunner(t)

	fetcher := &fakeFetcher{recs: map[string]*model.RawRecord{}}
	sum, err := r.CollectAddresses(context.Background(), fetcher, []source.AddressQuery{
		{Address: "404 Missing St"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Dropped)
	assert.Equal(t, 0, sum.Failed)
}

func TestApplyCorrections(t *testing.T) {
	r, st := newTestRunner(t)
	ctx := context.Background()

	searcher := &fakeSearcher{recs: map[string][]model.RawRecord{
		"6_12517": {rawRecord("185 Harriman Rd")},
	}}
	_, err := r.CollectRegions(ctx, searcher, []source.RegionQuery{{RegionID: "6_12517"}})
	require.NoError(t, err)

	sum, err := r.ApplyCorrections(ctx, map[string]corrections.Entry{
		"185 Harriman Rd": {ListingPrice: 899000, SoldPrice: 999000, Verified: true},
		"1 Nowhere Ln":    {ListingPrice: 100, Verified: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	assert.Equal(t, 1, sum.Missing)
	assert.Equal(t, 1, sum.Verified)

	got, err := st.GetByAddress(ctx, "185 Harriman Rd")
	require.NoError(t, err)
	require.NotNil(t, got.AskingPrice)
	assert.Equal(t, 899000.0, *got.AskingPrice)
	require.NotNil(t, got.SoldPrice)
	assert.Equal(t, 999000.0, *got.SoldPrice)
	assert.True(t, got.Verified)
}

type fakeScraper struct {
	hist map[string]*scrape.PriceHistory
	errs map[string]error
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (*scrape.PriceHistory, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.hist[url], nil
}

func TestEnrichSoldPrices(t *testing.T) {
	r, st := newTestRunner(t)
	ctx := context.Background()

	sold := func(id, addr, url string) *model.Property {
		return &model.Property{
			PropertyID: id,
			Address:    addr,
			Status:     model.StatusSold,
			SourceURL:  url,
		}
	}
	require.NoError(t, st.Upsert(ctx, sold("p-1", "1 First St", "https://www.redfin.com/p1")))
	require.NoError(t, st.Upsert(ctx, sold("p-2", "2 Second St", "")))
	require.NoError(t, st.Upsert(ctx, sold("p-3", "3 Third St", "https://www.redfin.com/p3")))

	// p-4 already has an asking price and is untouched.
	withPrice := sold("p-4", "4 Fourth St", "https://www.redfin.com/p4")
	asking := 750000.0
	withPrice.AskingPrice = &asking
	require.NoError(t, st.Upsert(ctx, withPrice))

	scraper := &fakeScraper{
		hist: map[string]*scrape.PriceHistory{
			"https://www.redfin.com/p1": {ListingPrice: 825000, Source: "dom"},
		},
		errs: map[string]error{
			"https://www.redfin.com/p3": fmt.Errorf("all extractors failed"),
		},
	}

	sum, err := r.EnrichSoldPrices(ctx, scraper)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Scanned)
	assert.Equal(t, 1, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)

	got, err := st.Get(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, got.AskingPrice)
	assert.Equal(t, 825000.0, *got.AskingPrice)

	p4, err := st.Get(ctx, "p-4")
	require.NoError(t, err)
	assert.Equal(t, 750000.0, *p4.AskingPrice)
}
