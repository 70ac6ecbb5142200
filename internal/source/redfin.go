package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/config"
	"github.com/northcounty/propsync/internal/model"
)

// RedfinAdapter queries the bulk property-search API (a RapidAPI
// subscription). Each item splits into a homeData sub-object for
// physical characteristics and a listingData sub-object for
// listing-specific fields.
type RedfinAdapter struct {
	cfg    config.RedfinConfig
	client *client
}

// NewRedfin creates an adapter for the bulk property-search API.
func NewRedfin(cfg config.RedfinConfig) *RedfinAdapter {
	return &RedfinAdapter{
		cfg:    cfg,
		client: newClient(cfg.RatePerSec, 30*time.Second),
	}
}

// Name returns the adapter identifier.
func (r *RedfinAdapter) Name() string { return "redfin" }

type redfinSearchResponse struct {
	Data []redfinItem `json:"data"`
}

type redfinItem struct {
	HomeData    redfinHomeData    `json:"homeData"`
	ListingData redfinListingData `json:"listingData"`
}

type redfinHomeData struct {
	PropertyID   json.Number `json:"propertyId"`
	URL          string      `json:"url"`
	PropertyType string      `json:"propertyType"`
	AddressInfo  struct {
		FormattedStreetLine string `json:"formattedStreetLine"`
		City                string `json:"city"`
		State               string `json:"state"`
		Zip                 string `json:"zip"`
		Centroid            struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"centroid"`
	} `json:"addressInfo"`
	PhotosInfo []struct {
		PhotoURL string `json:"photoUrl"`
	} `json:"photosInfo"`
}

type redfinListingData struct {
	Price        float64 `json:"price"`
	SoldPrice    float64 `json:"soldPrice"`
	Beds         float64 `json:"beds"`
	Baths        float64 `json:"baths"`
	Sqft         float64 `json:"sqft"`
	LotSize      float64 `json:"lotSize"` // square feet
	ListingDate  string  `json:"listingDate"`
	SoldDate     string  `json:"soldDate"`
	DaysOnMarket int     `json:"daysOnMarket"`
	Pending      bool    `json:"pending"`
	YearBuilt    int     `json:"yearBuilt"`
	MLSID        string  `json:"mlsId"`
	Description  string  `json:"description"`
}

// SearchRegion returns listing summaries for one region. Sold and
// active listings live on different endpoints; q.Status picks one.
func (r *RedfinAdapter) SearchRegion(ctx context.Context, q RegionQuery) ([]model.RawRecord, error) {
	endpoint := "/properties/search-sale"
	if q.Status == model.StatusSold {
		endpoint = "/properties/search-sold"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 15
	}

	params := url.Values{}
	params.Set("regionId", q.RegionID)
	params.Set("limit", fmt.Sprintf("%d", limit))

	body, _, err := r.client.get(ctx, r.cfg.BaseURL+endpoint+"?"+params.Encode(), map[string]string{
		"x-rapidapi-key":  r.cfg.Key,
		"x-rapidapi-host": r.cfg.Host,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "redfin: search region %s", q.RegionID)
	}

	var resp redfinSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(err, "redfin: parse response for region %s", q.RegionID)
	}
	if len(resp.Data) == 0 {
		zap.L().Debug("redfin: no listings for region", zap.String("region_id", q.RegionID))
		return nil, nil
	}

	records := make([]model.RawRecord, 0, len(resp.Data))
	for _, item := range resp.Data {
		records = append(records, r.toRaw(item, q.Status))
	}
	return records, nil
}

func (r *RedfinAdapter) toRaw(item redfinItem, status model.Status) model.RawRecord {
	home := item.HomeData
	listing := item.ListingData

	raw := model.RawRecord{
		PropertyID:   home.PropertyID.String(),
		Address:      home.AddressInfo.FormattedStreetLine,
		City:         home.AddressInfo.City,
		State:        home.AddressInfo.State,
		PostalCode:   home.AddressInfo.Zip,
		Beds:         listing.Beds,
		Baths:        listing.Baths,
		Sqft:         int(listing.Sqft),
		LotSizeSqft:  listing.LotSize,
		Price:        listing.Price,
		SoldPrice:    listing.SoldPrice,
		DaysOnMarket: listing.DaysOnMarket,
		Pending:      listing.Pending,
		YearBuilt:    listing.YearBuilt,
		PropertyType: home.PropertyType,
		Lat:          home.AddressInfo.Centroid.Lat,
		Lng:          home.AddressInfo.Centroid.Lon,
		MLSID:        listing.MLSID,
		Description:  listing.Description,
		Source:       r.Name(),
	}
	if raw.PropertyID == "0" {
		raw.PropertyID = ""
	}
	if status == model.StatusSold {
		raw.StatusText = "SOLD"
	}
	if home.URL != "" {
		raw.URL = "https://www.redfin.com" + home.URL
	}
	for _, photo := range home.PhotosInfo {
		if photo.PhotoURL != "" {
			raw.Photos = append(raw.Photos, photo.PhotoURL)
		}
	}
	if d, err := time.Parse("2006-01-02", listing.ListingDate); err == nil {
		raw.ListingDate = &d
	}
	if d, err := time.Parse("2006-01-02", listing.SoldDate); err == nil {
		raw.SaleDate = &d
	}
	return raw
}
