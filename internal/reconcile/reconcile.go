// Package reconcile repairs asking prices on sold rows after a
// collect run. Verified entries from the override file win outright;
// sold rows still missing an asking price get a banded estimate
// derived from their sold price.
package reconcile

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/corrections"
	"github.com/northcounty/propsync/internal/store"
)

// Asking-price factors by sold-price band. Expensive homes tend to
// close under asking, entry-level homes over it.
var askingBands = []struct {
	min    float64
	factor float64
}{
	{3_000_000, 1.05},
	{2_000_000, 1.03},
	{1_500_000, 1.02},
	{1_000_000, 1.01},
	{700_000, 0.99},
	{500_000, 0.98},
	{0, 0.97},
}

// EstimateAsking returns the banded asking-price estimate for a sold
// price, rounded to whole dollars.
func EstimateAsking(soldPrice float64) float64 {
	for _, b := range askingBands {
		if soldPrice > b.min {
			return math.Round(soldPrice * b.factor)
		}
	}
	return math.Round(soldPrice * 0.97)
}

// Summary reports one reconciliation run.
type Summary struct {
	Scanned   int `json:"scanned"`
	Corrected int `json:"corrected"` // overwritten from verified overrides
	Estimated int `json:"estimated"` // filled with a banded estimate
	Skipped   int `json:"skipped"`   // nothing to do, or no sold price to estimate from
	Failed    int `json:"failed"`
}

// Reconciler runs the price-reconciliation pass.
type Reconciler struct {
	store     store.Store
	overrides map[string]corrections.Entry
}

// New creates a Reconciler.
func New(st store.Store, overrides map[string]corrections.Entry) *Reconciler {
	return &Reconciler{store: st, overrides: overrides}
}

// Run walks all sold rows. A verified override overwrites the row's
// prices whatever they currently hold. Rows without an override and
// without an asking price get EstimateAsking of their sold price;
// rows with neither an asking nor a sold price are skipped.
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	log := zap.L().With(zap.String("component", "reconcile"))

	sold, err := r.store.ListSold(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: list sold properties")
	}

	sum := &Summary{}
	for i := range sold {
		p := &sold[i]
		sum.Scanned++

		if e, ok := r.overrides[p.Address]; ok && e.Verified {
			var asking, soldPrice *float64
			if e.ListingPrice > 0 {
				asking = &e.ListingPrice
			}
			if e.SoldPrice > 0 {
				soldPrice = &e.SoldPrice
			}
			if err := r.store.SetPrices(ctx, p.Address, asking, soldPrice, true); err != nil {
				log.Warn("apply verified override failed",
					zap.String("address", p.Address),
					zap.Error(err),
				)
				sum.Failed++
				continue
			}
			log.Info("verified override applied",
				zap.String("address", p.Address),
				zap.Float64p("asking_price", asking),
				zap.Float64p("sold_price", soldPrice),
			)
			sum.Corrected++
			continue
		}

		if p.AskingPrice != nil {
			sum.Skipped++
			continue
		}
		if p.SoldPrice == nil || *p.SoldPrice <= 0 {
			log.Debug("sold row has no sold price, cannot estimate",
				zap.String("property_id", p.PropertyID),
			)
			sum.Skipped++
			continue
		}

		est := EstimateAsking(*p.SoldPrice)
		if err := r.store.SetAskingPrice(ctx, p.PropertyID, est); err != nil {
			log.Warn("write estimated asking price failed",
				zap.String("property_id", p.PropertyID),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}
		log.Info("asking price estimated from sold price",
			zap.String("address", p.Address),
			zap.Float64("sold_price", *p.SoldPrice),
			zap.Float64("asking_price", est),
		)
		sum.Estimated++
	}

	log.Info("reconcile run complete",
		zap.Int("scanned", sum.Scanned),
		zap.Int("corrected", sum.Corrected),
		zap.Int("estimated", sum.Estimated),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}
