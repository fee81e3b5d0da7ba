package collector

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubMarketLister returns a canned market list or error.
type stubMarketLister struct {
	markets map[string]string
	err     error
}

func (s *stubMarketLister) PerpetualMarkets(ctx context.Context) (map[string]string, error) {
	return s.markets, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestActiveTickersFiltersStatusAndMalformedTickers(t *testing.T) {
	lister := &stubMarketLister{markets: map[string]string{
		"BTC-USD":      "ACTIVE",
		"ETH-USD":      "ACTIVE",
		"LUNA-USD":     "DELISTED",
		"SOL,OLD-USD":  "ACTIVE", // embedded comma, dropped regardless of status
		"MATIC-USD":    "PAUSED",
		"1INCH,2X-USD": "DELISTED",
	}}

	catalog := NewCatalog(lister, nil, discardLogger())
	tickers := catalog.ActiveTickers(context.Background())

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, tickers)
}

func TestActiveTickersAcceptsConfiguredStatuses(t *testing.T) {
	lister := &stubMarketLister{markets: map[string]string{
		"BTC-USD": "ONLINE",
		"ETH-USD": "ACTIVE",
	}}

	catalog := NewCatalog(lister, []string{"ACTIVE", "ONLINE"}, discardLogger())
	tickers := catalog.ActiveTickers(context.Background())

	assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, tickers)
}

func TestActiveTickersFetchFailureYieldsEmptySet(t *testing.T) {
	lister := &stubMarketLister{err: errors.New("connection refused")}

	catalog := NewCatalog(lister, nil, discardLogger())
	tickers := catalog.ActiveTickers(context.Background())

	assert.Empty(t, tickers)
}
