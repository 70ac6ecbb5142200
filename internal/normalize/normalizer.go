// Package normalize maps loosely-typed source records onto the
// canonical property schema, applying defaulting and precedence rules.
package normalize

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/config"
	"github.com/northcounty/propsync/internal/corrections"
	"github.com/northcounty/propsync/internal/model"
)

const sqftPerAcre = 43560

// ErrNoIdentity marks a record with no address and no property id.
// Such records are dropped before they reach the sink.
var ErrNoIdentity = eris.New("normalize: record has no address or property id")

// Normalizer converts raw source records into canonical properties.
type Normalizer struct {
	cfg       config.NormalizeConfig
	overrides map[string]corrections.Entry
	now       func() time.Time
}

// New creates a Normalizer with the given defaulting rules and
// manually curated price overrides (may be nil).
func New(cfg config.NormalizeConfig, overrides map[string]corrections.Entry) *Normalizer {
	if cfg.FallbackLabel == "" {
		cfg.FallbackLabel = "Westchester County"
	}
	if cfg.DefaultAcres == 0 {
		cfg.DefaultAcres = 0.5
	}
	if overrides == nil {
		overrides = map[string]corrections.Entry{}
	}
	return &Normalizer{cfg: cfg, overrides: overrides, now: time.Now}
}

// Normalize maps one raw record to one canonical Property. Records
// missing all identity fields return ErrNoIdentity.
func (n *Normalizer) Normalize(raw *model.RawRecord) (*model.Property, error) {
	if !raw.HasIdentity() {
		return nil, ErrNoIdentity
	}

	p := &model.Property{
		PropertyID:   raw.PropertyID,
		Address:      raw.Address,
		Beds:         clampNonNegative(raw.Beds),
		Baths:        clampNonNegative(raw.Baths),
		Sqft:         clampNonNegativeInt(raw.Sqft),
		YearBuilt:    clampNonNegativeInt(raw.YearBuilt),
		PropertyType: raw.PropertyType,
		ListingDate:  raw.ListingDate,
		SaleDate:     raw.SaleDate,
		MLSID:        raw.MLSID,
		SourceURL:    raw.URL,
		Photos:       raw.Photos,
		Description:  raw.Description,
	}

	if p.PropertyID == "" {
		p.PropertyID = placeholderID(n.now())
		zap.L().Warn("normalize: source omitted property id, generated placeholder",
			zap.String("address", raw.Address),
			zap.String("property_id", p.PropertyID),
		)
	}
	if p.PropertyType == "" {
		p.PropertyType = "Single Family"
	}

	n.setLocation(raw, p)
	n.setLotSize(raw, p)
	n.setStatus(raw, p)
	n.setPrices(raw, p)
	n.setDOM(raw, p)

	if raw.AVMValue > 0 {
		avm := raw.AVMValue
		p.AVMValue = &avm
	}

	return p, nil
}

func (n *Normalizer) setLocation(raw *model.RawRecord, p *model.Property) {
	city := raw.City
	if city == "" && raw.PostalCode != "" {
		city = raw.PostalCode
	}
	p.District = District(city, n.cfg.FallbackLabel)

	state := raw.State
	if state == "" {
		state = "NY"
	}
	switch {
	case raw.City != "":
		p.Location = fmt.Sprintf("%s, %s", raw.City, state)
	case n.cfg.DefaultLocation != "":
		p.Location = n.cfg.DefaultLocation
	default:
		p.Location = state
	}

	p.Lat = raw.Lat
	p.Lng = raw.Lng
	if p.Lat == 0 && p.Lng == 0 {
		p.Lat = n.cfg.CentroidLat
		p.Lng = n.cfg.CentroidLng
	}
}

func (n *Normalizer) setLotSize(raw *model.RawRecord, p *model.Property) {
	if raw.LotSizeSqft > 0 {
		p.Acres = math.Round(raw.LotSizeSqft/sqftPerAcre*100) / 100
		return
	}
	p.Acres = n.cfg.DefaultAcres
}

func (n *Normalizer) setStatus(raw *model.RawRecord, p *model.Property) {
	switch {
	case raw.StatusText == "SOLD" || raw.SaleDate != nil || raw.SoldPrice > 0:
		p.Status = model.StatusSold
	case raw.Pending || raw.StatusText == "PENDING":
		p.Status = model.StatusPending
	default:
		p.Status = model.StatusActive
	}
}

// setPrices applies the price precedence ladder: a verified override
// beats the source's dedicated sold-price field, which beats the
// generic price field. The AVM estimate never participates.
func (n *Normalizer) setPrices(raw *model.RawRecord, p *model.Property) {
	var asking, sold *float64

	if raw.Price > 0 {
		v := raw.Price
		asking = &v
	}
	if raw.SoldPrice > 0 {
		v := raw.SoldPrice
		sold = &v
	}
	if sold == nil && p.Status == model.StatusSold && raw.Price > 0 {
		// A generic price on a sold record is the sale amount.
		v := raw.Price
		sold = &v
		asking = nil
	}

	if entry, ok := n.overrides[raw.Address]; ok {
		if entry.ListingPrice > 0 {
			v := entry.ListingPrice
			asking = &v
		}
		if entry.SoldPrice > 0 {
			v := entry.SoldPrice
			sold = &v
		}
		p.Verified = entry.Verified
	}

	p.AskingPrice = asking
	p.SoldPrice = sold
}

func (n *Normalizer) setDOM(raw *model.RawRecord, p *model.Property) {
	if raw.DaysOnMarket > 0 {
		p.DOM = raw.DaysOnMarket
		return
	}
	if raw.ListingDate != nil && raw.SaleDate != nil {
		days := int(raw.SaleDate.Sub(*raw.ListingDate).Hours() / 24)
		if days < 1 {
			days = 1
		}
		p.DOM = days
	}
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func clampNonNegativeInt(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// placeholderID builds a unique id for sources that omit one. Not
// ideal, but uniqueness matters more than stability here.
func placeholderID(now time.Time) string {
	return fmt.Sprintf("gen-%d-%s", now.UnixNano(), uuid.New().String()[:8])
}
