package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northcounty/propsync/internal/config"
	"github.com/northcounty/propsync/internal/model"
)

// AttomAdapter queries the metered property-data API by address. The
// API's field casing is inconsistent across endpoints; Go's JSON
// decoder matches case-insensitively, which papers over most of it.
type AttomAdapter struct {
	cfg    config.AttomConfig
	client *client
	quota  *Quota
}

// NewAttom creates an adapter for the metered property-data API.
func NewAttom(cfg config.AttomConfig) *AttomAdapter {
	return &AttomAdapter{
		cfg:    cfg,
		client: newClient(cfg.RatePerSec, 30*time.Second),
		quota:  NewQuota(cfg.MonthlyQuota),
	}
}

// Name returns the adapter identifier.
func (a *AttomAdapter) Name() string { return "attom" }

// Quota exposes the running request counter.
func (a *AttomAdapter) Quota() *Quota { return a.quota }

type attomResponse struct {
	Property []attomProperty `json:"property"`
}

type attomProperty struct {
	Identifier struct {
		AttomID json.Number `json:"attomId"`
	} `json:"identifier"`
	Address struct {
		OneLine  string `json:"oneLine"`
		Locality string `json:"locality"`
		State    string `json:"countrySubd"`
		Postal   string `json:"postal1"`
	} `json:"address"`
	Building struct {
		Rooms struct {
			Beds       float64 `json:"beds"`
			BathsTotal float64 `json:"bathstotal"`
		} `json:"rooms"`
		Size struct {
			UniversalSize float64 `json:"universalsize"`
		} `json:"size"`
	} `json:"building"`
	Summary struct {
		YearBuilt int    `json:"yearbuilt"`
		PropType  string `json:"proptype"`
		PropClass string `json:"propclass"`
	} `json:"summary"`
	Lot struct {
		LotSize2 float64 `json:"lotsize2"` // square feet
	} `json:"lot"`
	Sale struct {
		SaleTransDate string `json:"saleTransDate"`
		Amount        struct {
			SaleAmt float64 `json:"saleamt"`
		} `json:"amount"`
	} `json:"sale"`
	AVM struct {
		Amount struct {
			Value float64 `json:"value"`
		} `json:"amount"`
	} `json:"avm"`
	Location struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
}

// FetchByAddress looks up one property. An empty property collection
// means not found and returns (nil, nil).
func (a *AttomAdapter) FetchByAddress(ctx context.Context, q AddressQuery) (*model.RawRecord, error) {
	if err := a.quota.Take(); err != nil {
		return nil, err
	}

	state := q.State
	if state == "" {
		state = "NY"
	}
	params := url.Values{}
	params.Set("address1", q.Address)
	params.Set("address2", fmt.Sprintf("%s, %s", q.City, state))

	endpoint := a.cfg.BaseURL + "/propertyapi/v1.0.0/allevents/detail?" + params.Encode()
	body, status, err := a.client.get(ctx, endpoint, map[string]string{
		"apikey": a.cfg.Key,
		"Accept": "application/json",
	})
	if err != nil {
		return nil, eris.Wrapf(err, "attom: fetch %s", q.Address)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	var resp attomResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrapf(err, "attom: parse response for %s", q.Address)
	}
	if len(resp.Property) == 0 {
		zap.L().Debug("attom: property not found", zap.String("address", q.Address))
		return nil, nil
	}

	prop := resp.Property[0]
	raw := &model.RawRecord{
		PropertyID:   prop.Identifier.AttomID.String(),
		Address:      q.Address,
		City:         q.City,
		State:        state,
		PostalCode:   prop.Address.Postal,
		Beds:         prop.Building.Rooms.Beds,
		Baths:        prop.Building.Rooms.BathsTotal,
		Sqft:         int(prop.Building.Size.UniversalSize),
		LotSizeSqft:  prop.Lot.LotSize2,
		SoldPrice:    prop.Sale.Amount.SaleAmt,
		YearBuilt:    prop.Summary.YearBuilt,
		PropertyType: propType(prop.Summary.PropType, prop.Summary.PropClass),
		AVMValue:     prop.AVM.Amount.Value,
		Source:       a.Name(),
	}
	if prop.Address.OneLine != "" {
		raw.Address = prop.Address.OneLine
	}
	if prop.Address.Locality != "" {
		raw.City = prop.Address.Locality
	}
	if raw.PropertyID == "" || raw.PropertyID == "0" {
		raw.PropertyID = ""
	}
	if lat, err := strconv.ParseFloat(prop.Location.Latitude, 64); err == nil {
		raw.Lat = lat
	}
	if lng, err := strconv.ParseFloat(prop.Location.Longitude, 64); err == nil {
		raw.Lng = lng
	}
	if prop.Sale.SaleTransDate != "" {
		if d, err := time.Parse("2006-01-02", prop.Sale.SaleTransDate); err == nil {
			raw.SaleDate = &d
		}
	}

	return raw, nil
}

func propType(typ, class string) string {
	if class != "" {
		return class
	}
	return typ
}
