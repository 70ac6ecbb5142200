package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northcounty/propsync/internal/model"
	"github.com/northcounty/propsync/internal/store"
)

func newRouterTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedProperty(t *testing.T, st store.Store, id, addr string, status model.Status) {
	t.Helper()
	require.NoError(t, st.Upsert(context.Background(), &model.Property{
		PropertyID: id,
		Address:    addr,
		District:   "Bedford Central School District",
		Status:     status,
	}))
}

func TestRouterHealth(t *testing.T) {
	srv := httptest.NewServer(newRouter(newRouterTestStore(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRouterListProperties(t *testing.T) {
	st := newRouterTestStore(t)
	seedProperty(t, st, "p-1", "1 First St", model.StatusActive)
	seedProperty(t, st, "p-2", "2 Second St", model.StatusSold)

	srv := httptest.NewServer(newRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/properties?status=sold")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var props []model.Property
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&props))
	require.Len(t, props, 1)
	assert.Equal(t, "p-2", props[0].PropertyID)
}

func TestRouterListPropertiesBadStatus(t *testing.T) {
	srv := httptest.NewServer(newRouter(newRouterTestStore(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/properties?status=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouterGetProperty(t *testing.T) {
	st := newRouterTestStore(t)
	seedProperty(t, st, "p-1", "1 First St", model.StatusActive)

	srv := httptest.NewServer(newRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/properties/p-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var p model.Property
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "1 First St", p.Address)

	missing, err := http.Get(srv.URL + "/properties/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestRouterStats(t *testing.T) {
	st := newRouterTestStore(t)
	asking, sold := 1_000_000.0, 1_100_000.0
	require.NoError(t, st.Upsert(context.Background(), &model.Property{
		PropertyID:  "p-1",
		Address:     "1 First St",
		Status:      model.StatusSold,
		AskingPrice: &asking,
		SoldPrice:   &sold,
	}))

	srv := httptest.NewServer(newRouter(st))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats model.MarketStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalSold)
	assert.Equal(t, 1, stats.SoldOverAsking)
	assert.InDelta(t, 10.0, stats.AvgPercentDiff, 0.001)
}
