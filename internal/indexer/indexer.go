// Package indexer defines the client and interfaces for the remote perpetual
// markets indexing service that funding history is harvested from.
//
// The interfaces are small and composable: the collector consumes them rather
// than the concrete client, so tests can substitute stub implementations.
package indexer

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/johnayoung/go-funding-archiver/internal/models"
)

// MarketLister retrieves the perpetual market list from the indexer.
type MarketLister interface {
	// PerpetualMarkets retrieves the full market list as a mapping from
	// ticker to declared status (e.g. "ACTIVE"). The call consumes one slot
	// of the shared request budget.
	//
	// Transport failures and malformed payloads are both surfaced as errors;
	// callers treat them identically as "no data for this request".
	PerpetualMarkets(ctx context.Context) (map[string]string, error)
}

// FundingProvider retrieves historical funding observations for one market.
type FundingProvider interface {
	// HistoricalFunding retrieves up to limit funding entries for the ticker,
	// effective at or before the given instant, newest first as returned by
	// the service. The call consumes one slot of the shared request budget.
	HistoricalFunding(ctx context.Context, ticker string, effectiveBeforeOrAt time.Time, limit int) ([]FundingEntry, error)
}

// IndexerClient combines the full capability set the collector depends on.
type IndexerClient interface {
	MarketLister
	FundingProvider
}

// FundingEntry is one historical funding record as serialized by the indexer.
// Rates and prices arrive as decimal strings to avoid float truncation.
type FundingEntry struct {
	Market      string    `json:"market"`
	Rate        string    `json:"rate"`
	Price       string    `json:"price"`
	EffectiveAt time.Time `json:"effectiveAt"`
}

// Observation converts the wire entry into the internal observation model,
// parsing the rate as an exact decimal.
func (e FundingEntry) Observation() (*models.FundingObservation, error) {
	rate, err := decimal.NewFromString(e.Rate)
	if err != nil {
		return nil, &models.ValidationError{Field: "rate", Message: "invalid rate format: " + e.Rate}
	}

	obs := &models.FundingObservation{
		Ticker:      e.Market,
		EffectiveAt: e.EffectiveAt.UTC(),
		Rate:        rate,
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	return obs, nil
}
