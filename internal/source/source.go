// Package source implements adapters for the external property data
// sources. Adapters return loosely-typed records; absence of a
// property is (nil, nil), never an error.
package source

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/northcounty/propsync/internal/model"
)

// ErrQuotaExhausted signals that a metered source's request budget is
// spent. Batch loops stop calling the source when they see it.
var ErrQuotaExhausted = eris.New("source: request quota exhausted")

// AddressQuery identifies a single property by street address.
type AddressQuery struct {
	Address string
	City    string
	State   string
}

// RegionQuery asks a bulk source for listings in one region.
type RegionQuery struct {
	RegionID string
	Status   model.Status // StatusActive or StatusSold
	Limit    int
}

// PropertyFetcher fetches one property record by address.
type PropertyFetcher interface {
	Name() string
	FetchByAddress(ctx context.Context, q AddressQuery) (*model.RawRecord, error)
}

// RegionSearcher returns listing summaries for a region.
type RegionSearcher interface {
	Name() string
	SearchRegion(ctx context.Context, q RegionQuery) ([]model.RawRecord, error)
}

// Quota counts requests against a fixed budget. It is the only
// defense against overrunning the metered API's monthly allowance, so
// adapters take from it before every call.
type Quota struct {
	mu    sync.Mutex
	used  int
	limit int
}

// NewQuota creates a quota with the given request budget. A zero or
// negative limit means unlimited.
func NewQuota(limit int) *Quota {
	return &Quota{limit: limit}
}

// Take consumes one request from the budget, or returns
// ErrQuotaExhausted when none remain.
func (q *Quota) Take() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit > 0 && q.used >= q.limit {
		return ErrQuotaExhausted
	}
	q.used++
	return nil
}

// Used returns how many requests have been consumed.
func (q *Quota) Used() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.used
}

// Remaining returns how many requests are left, or -1 when unlimited.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit <= 0 {
		return -1
	}
	return q.limit - q.used
}
