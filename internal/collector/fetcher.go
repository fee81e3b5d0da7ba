package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/johnayoung/go-funding-archiver/internal/indexer"
	"github.com/johnayoung/go-funding-archiver/internal/models"
)

// DefaultFetchLimit is the number of funding entries requested per market per
// day: one observation per hour covers the 24-hour window.
const DefaultFetchLimit = 24

// Fetcher retrieves one day of funding observations per market. The fan-out
// is one goroutine per market; the shared request limiter inside the indexer
// client is the effective throttle.
type Fetcher struct {
	funding    indexer.FundingProvider
	fetchLimit int
	metrics    *runMetrics
	logger     *slog.Logger
}

// NewFetcher creates a fetcher requesting up to fetchLimit entries per market
// per day.
func NewFetcher(funding indexer.FundingProvider, fetchLimit int, metrics *runMetrics, logger *slog.Logger) *Fetcher {
	if fetchLimit <= 0 {
		fetchLimit = DefaultFetchLimit
	}
	return &Fetcher{
		funding:    funding,
		fetchLimit: fetchLimit,
		metrics:    metrics,
		logger:     logger,
	}
}

// FetchDay retrieves the last-24h funding observations for every market over
// the half-open UTC window [day, day+24h).
//
// Per-market failures are logged and excluded from the result; one failing
// market never aborts the others. Markets with no successful observations are
// absent from the returned map rather than present with an empty list.
func (f *Fetcher) FetchDay(ctx context.Context, day time.Time, tickers []string) map[string][]models.FundingObservation {
	windowEnd := day.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)

	results := make(map[string][]models.FundingObservation, len(tickers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ticker := range tickers {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()

			entries, err := f.funding.HistoricalFunding(ctx, ticker, windowEnd, f.fetchLimit)
			if err != nil {
				f.metrics.recordFetchFailure()
				f.logger.Warn("funding fetch failed",
					"ticker", ticker,
					"day", day.Format("2006-01-02"),
					"error", err)
				return
			}

			observations := make([]models.FundingObservation, 0, len(entries))
			for _, entry := range entries {
				obs, err := entry.Observation()
				if err != nil {
					f.logger.Warn("skipping malformed funding entry",
						"ticker", ticker,
						"error", err)
					continue
				}
				observations = append(observations, *obs)
			}

			f.metrics.recordFetchSuccess()
			if len(observations) == 0 {
				return
			}

			mu.Lock()
			results[ticker] = observations
			mu.Unlock()
		}(ticker)
	}

	// Join barrier: accumulation reads the results only after every fetch for
	// the day has finished.
	wg.Wait()
	return results
}
