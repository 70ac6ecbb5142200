package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/northcounty/propsync/internal/model"
)

// ErrNotFound is returned when an operation targets a row that does
// not exist.
var ErrNotFound = eris.New("store: not found")

// Filter specifies criteria for listing properties.
type Filter struct {
	Status   model.Status `json:"status,omitempty"`
	District string       `json:"district,omitempty"`
	Limit    int          `json:"limit,omitempty"`
	Offset   int          `json:"offset,omitempty"`
}

// Store defines the persistence interface for the property pipeline.
//
// Upsert is coalescing: on conflict it keeps the existing value for
// any field the incoming record left unset, so a sparse source never
// blanks data a richer source wrote earlier. Rows carrying verified
// prices keep them unless the incoming record is itself verified.
type Store interface {
	// Properties
	Upsert(ctx context.Context, p *model.Property) error
	Get(ctx context.Context, propertyID string) (*model.Property, error)
	GetByAddress(ctx context.Context, address string) (*model.Property, error)
	List(ctx context.Context, filter Filter) ([]model.Property, error)
	ListSold(ctx context.Context) ([]model.Property, error)

	// Price maintenance
	SetPrices(ctx context.Context, address string, asking, sold *float64, verified bool) error
	SetAskingPrice(ctx context.Context, propertyID string, price float64) error

	// Reporting
	MarketStats(ctx context.Context) (*model.MarketStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Clear(ctx context.Context) error
	Close() error
}
