package collector

import (
	"log/slog"
	"time"

	"github.com/johnayoung/go-funding-archiver/internal/models"
)

// Accumulator folds per-day fetch results into the run's per-market series.
type Accumulator struct {
	metrics *runMetrics
	logger  *slog.Logger
}

// NewAccumulator creates an accumulator reporting retained counts to metrics.
func NewAccumulator(metrics *runMetrics, logger *slog.Logger) *Accumulator {
	return &Accumulator{metrics: metrics, logger: logger}
}

// Accumulate merges dayResults into series in place. A missing series is
// created on first sight of a ticker. When dateFilter is non-nil, observations
// whose UTC calendar date differs from the filter date are skipped.
//
// Timestamps are truncated to whole seconds and upserted unconditionally: no
// ordering is assumed from the upstream list, so within one call the last
// write for a second wins.
func (a *Accumulator) Accumulate(day time.Time, series map[string]models.FundingSeries, dayResults map[string][]models.FundingObservation, dateFilter *time.Time) {
	for ticker, observations := range dayResults {
		marketSeries, ok := series[ticker]
		if !ok {
			marketSeries = make(models.FundingSeries)
			series[ticker] = marketSeries
		}

		retained := 0
		for _, obs := range observations {
			if dateFilter != nil && !sameUTCDate(obs.EffectiveAt, *dateFilter) {
				continue
			}
			marketSeries.Put(obs.EffectiveAt, obs.Rate)
			retained++
		}

		a.metrics.recordRetained(retained)
		a.logger.Debug("accumulated funding observations",
			"ticker", ticker,
			"day", day.Format("2006-01-02"),
			"fetched", len(observations),
			"retained", retained)
	}
}

// sameUTCDate reports whether two instants fall on the same UTC calendar day.
func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
