package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-funding-archiver/internal/ratelimit"
)

func testLimiter() *ratelimit.Limiter {
	return ratelimit.New(1000, time.Second)
}

func TestPerpetualMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/perpetualMarkets", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"markets": {
				"BTC-USD": {"market": "BTC-USD", "status": "ACTIVE"},
				"ETH-USD": {"market": "ETH-USD", "status": "ACTIVE"},
				"LUNA-USD": {"market": "LUNA-USD", "status": "DELISTED"}
			}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter())
	statuses, err := client.PerpetualMarkets(context.Background())
	require.NoError(t, err)

	assert.Len(t, statuses, 3)
	assert.Equal(t, "ACTIVE", statuses["BTC-USD"])
	assert.Equal(t, "DELISTED", statuses["LUNA-USD"])
}

func TestPerpetualMarketsMalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets": [`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter())
	_, err := client.PerpetualMarkets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestHistoricalFunding(t *testing.T) {
	effectiveBeforeOrAt := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/historicalFunding/BTC-USD", r.URL.Path)
		assert.Equal(t, "24", r.URL.Query().Get("limit"))
		assert.Equal(t, effectiveBeforeOrAt.Format(time.RFC3339), r.URL.Query().Get("effectiveBeforeOrAt"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"historicalFunding": [
				{"market": "BTC-USD", "rate": "0.0000125", "price": "43000.1", "effectiveAt": "2026-01-10T23:00:00.000Z"},
				{"market": "BTC-USD", "rate": "-0.0000021", "price": "42990.5", "effectiveAt": "2026-01-10T22:00:00.000Z"}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter())
	entries, err := client.HistoricalFunding(context.Background(), "BTC-USD", effectiveBeforeOrAt, 24)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	obs, err := entries[0].Observation()
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", obs.Ticker)
	assert.Equal(t, "0.0000125", obs.Rate.String())
	assert.Equal(t, time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC), obs.EffectiveAt)
}

func TestFundingEntryObservationInvalidRate(t *testing.T) {
	entry := FundingEntry{
		Market:      "BTC-USD",
		Rate:        "not-a-number",
		EffectiveAt: time.Date(2026, 1, 10, 23, 0, 0, 0, time.UTC),
	}
	_, err := entry.Observation()
	require.Error(t, err)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"markets": {}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter())
	_, err := client.PerpetualMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, testLimiter())
	_, err := client.HistoricalFunding(context.Background(), "NOPE-USD", time.Now(), 24)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses must be permanent")
}
