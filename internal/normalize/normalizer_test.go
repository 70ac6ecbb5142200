package normalize

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcounty/propsync/internal/config"
	"github.com/northcounty/propsync/internal/corrections"
	"github.com/northcounty/propsync/internal/model"
)

func testConfig() config.NormalizeConfig {
	return config.NormalizeConfig{
		DefaultAcres:    0.5,
		FallbackLabel:   "Westchester County",
		CentroidLat:     41.2048,
		CentroidLng:     -73.7032,
		DefaultLocation: "Mount Kisco, NY",
	}
}

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestDistrict(t *testing.T) {
	tests := []struct {
		city string
		want string
	}{
		{"Chappaqua", "Chappaqua Central"},
		{"CHAPPAQUA", "Chappaqua Central"},
		{"chappaqua hamlet", "Chappaqua Central"},
		{"Mount Kisco", "Bedford Central"},
		{"Bedford Hills", "Bedford Central"},
		{"Yorktown Heights", "Yorktown Central"},
		{"Scarsdale", "Scarsdale"},
		{"Rye", "Rye City"},
		{"White Plains", "White Plains"},
		{"Armonk", "Byram Hills"},
		{"Katonah", "Katonah-Lewisboro"},
		{"Poughkeepsie", "Westchester County"},
		{"", "Westchester County"},
	}
	for _, tt := range tests {
		t.Run(tt.city, func(t *testing.T) {
			assert.Equal(t, tt.want, District(tt.city, "Westchester County"))
		})
	}
}

func TestNormalizeNoIdentity(t *testing.T) {
	n := New(testConfig(), nil)
	_, err := n.Normalize(&model.RawRecord{Beds: 3, Price: 500000})
	require.ErrorIs(t, err, ErrNoIdentity)
}

func TestNormalizePlaceholderID(t *testing.T) {
	n := New(testConfig(), nil)
	p, err := n.Normalize(&model.RawRecord{Address: "10 Elm St", City: "Bedford"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.PropertyID, "gen-"))

	p2, err := n.Normalize(&model.RawRecord{Address: "10 Elm St", City: "Bedford"})
	require.NoError(t, err)
	assert.NotEqual(t, p.PropertyID, p2.PropertyID)
}

func TestNormalizeNumericClamps(t *testing.T) {
	n := New(testConfig(), nil)
	p, err := n.Normalize(&model.RawRecord{
		PropertyID: "p1",
		Address:    "10 Elm St",
		Beds:       -2,
		Baths:      -1,
		Sqft:       -100,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Beds, 0.0)
	assert.GreaterOrEqual(t, p.Baths, 0.0)
	assert.GreaterOrEqual(t, p.Sqft, 0)
	assert.GreaterOrEqual(t, p.DOM, 0)
	assert.Nil(t, p.AskingPrice)
	assert.Nil(t, p.SoldPrice)
}

func TestNormalizeLotSize(t *testing.T) {
	n := New(testConfig(), nil)

	p, err := n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a", LotSizeSqft: 43560})
	require.NoError(t, err)
	assert.InDelta(t, 1.00, p.Acres, 0.001)

	p, err = n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a", LotSizeSqft: 21780})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Acres, 0.001)

	// Missing lot size falls back to the configured default.
	p, err = n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a"})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, p.Acres, 0.001)
}

func TestNormalizeStatus(t *testing.T) {
	n := New(testConfig(), nil)

	tests := []struct {
		name string
		raw  model.RawRecord
		want model.Status
	}{
		{"sale date implies sold", model.RawRecord{SaleDate: date("2024-06-01")}, model.StatusSold},
		{"sold price implies sold", model.RawRecord{SoldPrice: 900000}, model.StatusSold},
		{"vendor SOLD text", model.RawRecord{StatusText: "SOLD"}, model.StatusSold},
		{"pending flag", model.RawRecord{Pending: true}, model.StatusPending},
		{"vendor PENDING text", model.RawRecord{StatusText: "PENDING"}, model.StatusPending},
		{"neither", model.RawRecord{}, model.StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.raw.PropertyID = "p1"
			tt.raw.Address = "a"
			p, err := n.Normalize(&tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Status)
			assert.True(t, p.Status.Valid())
		})
	}
}

func TestNormalizeDOM(t *testing.T) {
	n := New(testConfig(), nil)

	p, err := n.Normalize(&model.RawRecord{
		PropertyID:  "p1",
		Address:     "a",
		ListingDate: date("2024-01-01"),
		SaleDate:    date("2024-03-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, p.DOM)

	// Same-day sale clamps to 1.
	p, err = n.Normalize(&model.RawRecord{
		PropertyID:  "p1",
		Address:     "a",
		ListingDate: date("2024-01-01"),
		SaleDate:    date("2024-01-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.DOM)

	// Source-supplied DOM wins over derivation.
	p, err = n.Normalize(&model.RawRecord{
		PropertyID:   "p1",
		Address:      "a",
		DaysOnMarket: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, 45, p.DOM)
}

func TestNormalizeOverridePrecedence(t *testing.T) {
	overrides := map[string]corrections.Entry{
		"185 Harriman Rd": {ListingPrice: 899000, SoldPrice: 999000, Verified: true},
	}
	n := New(testConfig(), overrides)

	p, err := n.Normalize(&model.RawRecord{
		Address:   "185 Harriman Rd",
		SoldPrice: 999000,
		SaleDate:  date("2024-06-01"),
	})
	require.NoError(t, err)
	require.NotNil(t, p.AskingPrice)
	require.NotNil(t, p.SoldPrice)
	assert.InDelta(t, 899000, *p.AskingPrice, 0.01)
	assert.InDelta(t, 999000, *p.SoldPrice, 0.01)
	assert.Equal(t, model.StatusSold, p.Status)
	assert.True(t, p.Verified)
}

func TestNormalizeOverrideBeatsSourcePrice(t *testing.T) {
	overrides := map[string]corrections.Entry{
		"10 Elm St": {ListingPrice: 700000, Verified: true},
	}
	n := New(testConfig(), overrides)

	p, err := n.Normalize(&model.RawRecord{
		Address: "10 Elm St",
		Price:   1250000, // concurrently fetched source value loses
	})
	require.NoError(t, err)
	require.NotNil(t, p.AskingPrice)
	assert.InDelta(t, 700000, *p.AskingPrice, 0.01)
}

func TestNormalizeSoldGenericPrice(t *testing.T) {
	n := New(testConfig(), nil)

	// On a sold record with only a generic price, the price is the
	// sale amount, not the asking price.
	p, err := n.Normalize(&model.RawRecord{
		PropertyID: "p1",
		Address:    "a",
		Price:      850000,
		StatusText: "SOLD",
	})
	require.NoError(t, err)
	assert.Nil(t, p.AskingPrice)
	require.NotNil(t, p.SoldPrice)
	assert.InDelta(t, 850000, *p.SoldPrice, 0.01)
}

func TestNormalizeAVMNeverPromoted(t *testing.T) {
	n := New(testConfig(), nil)

	p, err := n.Normalize(&model.RawRecord{
		PropertyID: "p1",
		Address:    "a",
		AVMValue:   1100000,
	})
	require.NoError(t, err)
	require.NotNil(t, p.AVMValue)
	assert.InDelta(t, 1100000, *p.AVMValue, 0.01)
	assert.Nil(t, p.AskingPrice)
	assert.Nil(t, p.SoldPrice)
}

func TestNormalizeCentroidDefault(t *testing.T) {
	n := New(testConfig(), nil)

	p, err := n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a"})
	require.NoError(t, err)
	assert.InDelta(t, 41.2048, p.Lat, 0.0001)
	assert.InDelta(t, -73.7032, p.Lng, 0.0001)

	p, err = n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a", Lat: 41.15, Lng: -73.76})
	require.NoError(t, err)
	assert.InDelta(t, 41.15, p.Lat, 0.0001)
}

func TestNormalizeLocation(t *testing.T) {
	n := New(testConfig(), nil)

	p, err := n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a", City: "Chappaqua"})
	require.NoError(t, err)
	assert.Equal(t, "Chappaqua, NY", p.Location)
	assert.Equal(t, "Chappaqua Central", p.District)

	p, err = n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a", City: "Greenwich", State: "CT"})
	require.NoError(t, err)
	assert.Equal(t, "Greenwich, CT", p.Location)
	assert.Equal(t, "Westchester County", p.District)

	// No city at all falls back to the configured location.
	p, err = n.Normalize(&model.RawRecord{PropertyID: "p1", Address: "a"})
	require.NoError(t, err)
	assert.Equal(t, "Mount Kisco, NY", p.Location)
}
