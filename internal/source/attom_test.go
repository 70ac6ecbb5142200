package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcounty/propsync/internal/config"
)

const attomFoundBody = `{
  "property": [
    {
      "identifier": {"attomId": 184713191},
      "address": {"oneLine": "185 HARRIMAN RD, MOUNT KISCO, NY 10549", "locality": "Mount Kisco", "countrySubd": "NY", "postal1": "10549"},
      "building": {
        "rooms": {"beds": 4, "bathstotal": 2.5},
        "size": {"universalsize": 2650}
      },
      "summary": {"yearbuilt": 1962, "proptype": "SFR", "propclass": "Single Family Residence / Townhouse"},
      "lot": {"lotsize2": 43560},
      "sale": {"saleTransDate": "2024-06-01", "amount": {"saleamt": 999000}},
      "avm": {"amount": {"value": 1050000}},
      "location": {"latitude": "41.1956", "longitude": "-73.7304"}
    }
  ]
}`

func attomTestAdapter(t *testing.T, handler http.HandlerFunc, quota int) *AttomAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAttom(config.AttomConfig{
		Key:          "test-key",
		BaseURL:      srv.URL,
		MonthlyQuota: quota,
		RatePerSec:   1000,
	})
}

func TestAttomFetchByAddress(t *testing.T) {
	var gotKey, gotAddress1, gotAddress2 string
	a := attomTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
		gotAddress1 = r.URL.Query().Get("address1")
		gotAddress2 = r.URL.Query().Get("address2")
		w.Write([]byte(attomFoundBody))
	}, 100)

	raw, err := a.FetchByAddress(context.Background(), AddressQuery{
		Address: "185 Harriman Rd",
		City:    "Mount Kisco",
	})
	require.NoError(t, err)
	require.NotNil(t, raw)

	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "185 Harriman Rd", gotAddress1)
	assert.Equal(t, "Mount Kisco, NY", gotAddress2)

	assert.Equal(t, "184713191", raw.PropertyID)
	assert.Equal(t, "185 HARRIMAN RD, MOUNT KISCO, NY 10549", raw.Address)
	assert.Equal(t, "Mount Kisco", raw.City)
	assert.InDelta(t, 4, raw.Beds, 0.001)
	assert.InDelta(t, 2.5, raw.Baths, 0.001)
	assert.Equal(t, 2650, raw.Sqft)
	assert.InDelta(t, 43560, raw.LotSizeSqft, 0.001)
	assert.InDelta(t, 999000, raw.SoldPrice, 0.01)
	require.NotNil(t, raw.SaleDate)
	assert.Equal(t, "2024-06-01", raw.SaleDate.Format("2006-01-02"))
	assert.Equal(t, 1962, raw.YearBuilt)
	assert.InDelta(t, 1050000, raw.AVMValue, 0.01)
	assert.InDelta(t, 41.1956, raw.Lat, 0.0001)
	assert.InDelta(t, -73.7304, raw.Lng, 0.0001)
	assert.Equal(t, "attom", raw.Source)
	assert.Equal(t, 1, a.Quota().Used())
}

func TestAttomNotFound(t *testing.T) {
	a := attomTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"property": []}`))
	}, 100)

	raw, err := a.FetchByAddress(context.Background(), AddressQuery{Address: "1 Nowhere Ln", City: "Bedford"})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestAttomNotFoundStatus(t *testing.T) {
	a := attomTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, 100)

	raw, err := a.FetchByAddress(context.Background(), AddressQuery{Address: "1 Nowhere Ln", City: "Bedford"})
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestAttomMalformedResponse(t *testing.T) {
	a := attomTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}, 100)

	_, err := a.FetchByAddress(context.Background(), AddressQuery{Address: "1 Main St", City: "Bedford"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestAttomQuotaExhausted(t *testing.T) {
	a := attomTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"property": []}`))
	}, 2)

	ctx := context.Background()
	q := AddressQuery{Address: "1 Main St", City: "Bedford"}

	_, err := a.FetchByAddress(ctx, q)
	require.NoError(t, err)
	_, err = a.FetchByAddress(ctx, q)
	require.NoError(t, err)

	_, err = a.FetchByAddress(ctx, q)
	require.ErrorIs(t, err, ErrQuotaExhausted)
	assert.Equal(t, 0, a.Quota().Remaining())
}

func TestQuota(t *testing.T) {
	q := NewQuota(0)
	assert.Equal(t, -1, q.Remaining())
	for range 50 {
		require.NoError(t, q.Take())
	}
	assert.Equal(t, 50, q.Used())
}
