package pipeline

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/corrections"
	"github.com/northcounty/propsync/internal/store"
)

// ApplySummary reports one corrections-file application.
type ApplySummary struct {
	Applied  int `json:"applied"`
	Missing  int `json:"missing"` // addresses with no matching row
	Failed   int `json:"failed"`
	Verified int `json:"verified"`
}

// ApplyCorrections writes hand-checked price entries onto their rows,
// keyed by address. An entry whose address has no row yet is logged
// and skipped; it will match once a collect run brings the row in.
func (r *Runner) ApplyCorrections(ctx context.Context, entries map[string]corrections.Entry) (*ApplySummary, error) {
	log := zap.L().With(zap.String("component", "pipeline.corrections"))
	sum := &ApplySummary{}

	addrs := make([]string, 0, len(entries))
	for addr := range entries {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		e := entries[addr]
		var asking, sold *float64
		if e.ListingPrice > 0 {
			asking = &e.ListingPrice
		}
		if e.SoldPrice > 0 {
			sold = &e.SoldPrice
		}
		err := r.store.SetPrices(ctx, addr, asking, sold, e.Verified)
		if errors.Is(err, store.ErrNotFound) {
			log.Warn("correction address has no row yet, skipping",
				zap.String("address", addr),
			)
			sum.Missing++
			continue
		}
		if err != nil {
			log.Warn("apply correction failed",
				zap.String("address", addr),
				zap.Error(err),
			)
			sum.Failed++
			continue
		}
		sum.Applied++
		if e.Verified {
			sum.Verified++
		}
		log.Info("correction applied",
			zap.String("address", addr),
			zap.Bool("verified", e.Verified),
			zap.String("notes", e.Notes),
		)
	}

	log.Info("corrections run complete",
		zap.Int("applied", sum.Applied),
		zap.Int("missing", sum.Missing),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}
