package model

import "time"

// Status represents the listing state of a property.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusSold    Status = "sold"
)

// Valid reports whether the status is one of the three known values.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusSold:
		return true
	}
	return false
}

// Property is the canonical record written to the properties table.
// PropertyID is the upsert conflict key.
type Property struct {
	PropertyID   string     `json:"property_id"`
	Address      string     `json:"address"`
	Location     string     `json:"location"` // "City, ST"
	District     string     `json:"district"`
	Beds         float64    `json:"beds"`
	Baths        float64    `json:"baths"`
	Sqft         int        `json:"sqft"`
	Acres        float64    `json:"acres"`
	YearBuilt    int        `json:"year_built,omitempty"`
	PropertyType string     `json:"property_type"`
	AskingPrice  *float64   `json:"asking_price,omitempty"`
	SoldPrice    *float64   `json:"sold_price,omitempty"`
	ListingDate  *time.Time `json:"listing_date,omitempty"`
	SaleDate     *time.Time `json:"sale_date,omitempty"`
	DOM          int        `json:"dom"`
	Status       Status     `json:"status"`
	Lat          float64    `json:"lat"`
	Lng          float64    `json:"lng"`
	MLSID        string     `json:"mls_id,omitempty"`
	SourceURL    string     `json:"source_url,omitempty"`
	Photos       []string   `json:"photos,omitempty"`
	Description  string     `json:"description,omitempty"`
	Verified     bool       `json:"verified"`

	// AVMValue is a third-party automated valuation estimate. It is a
	// low-confidence number and is never copied into AskingPrice or
	// SoldPrice.
	AVMValue *float64 `json:"avm_value,omitempty"`
}

// RawRecord is the loosely-typed output of a source adapter. Every
// field is optional; sources fill whatever subset their payload
// carried and the normalizer sorts out precedence and defaults.
type RawRecord struct {
	PropertyID   string
	Address      string
	City         string
	State        string
	PostalCode   string
	Beds         float64
	Baths        float64
	Sqft         int
	LotSizeSqft  float64
	Price        float64 // generic price field; asking for active, ambiguous otherwise
	SoldPrice    float64 // dedicated sold-price field, when the source has one
	ListingDate  *time.Time
	SaleDate     *time.Time
	DaysOnMarket int
	Pending      bool
	StatusText   string // vendor status string, e.g. "SOLD"
	PropertyType string
	YearBuilt    int
	Lat          float64
	Lng          float64
	MLSID        string
	URL          string
	Photos       []string
	Description  string
	AVMValue     float64
	Source       string // adapter name, for provenance logging
}

// HasIdentity reports whether the record carries enough to key a row.
func (r *RawRecord) HasIdentity() bool {
	return r.Address != "" || r.PropertyID != ""
}

// MarketStats summarizes sold-vs-asking outcomes across the table.
type MarketStats struct {
	TotalSold       int     `json:"total_sold"`
	SoldOverAsking  int     `json:"sold_over_asking"`
	SoldUnderAsking int     `json:"sold_under_asking"`
	SoldAtAsking    int     `json:"sold_at_asking"`
	AvgPercentDiff  float64 `json:"avg_percent_diff"`
}
