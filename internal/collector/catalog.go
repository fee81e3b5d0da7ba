package collector

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/johnayoung/go-funding-archiver/internal/indexer"
)

// Catalog discovers the set of markets worth harvesting. The market list is
// fetched once per run and is immutable thereafter.
type Catalog struct {
	markets  indexer.MarketLister
	statuses map[string]struct{}
	logger   *slog.Logger
}

// NewCatalog creates a catalog that accepts markets whose declared status is
// in statuses (defaults to ACTIVE only when empty).
func NewCatalog(markets indexer.MarketLister, statuses []string, logger *slog.Logger) *Catalog {
	if len(statuses) == 0 {
		statuses = []string{"ACTIVE"}
	}
	accepted := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		accepted[status] = struct{}{}
	}
	return &Catalog{
		markets:  markets,
		statuses: accepted,
		logger:   logger,
	}
}

// ActiveTickers fetches the market list and filters it to active, well-formed
// tickers, sorted for deterministic processing order.
//
// A catalog fetch failure is not fatal to the process, only to coverage for
// this run: it is logged and yields an empty set.
func (c *Catalog) ActiveTickers(ctx context.Context) []string {
	listed, err := c.markets.PerpetualMarkets(ctx)
	if err != nil {
		c.logger.Error("market catalog fetch failed, proceeding with empty market set", "error", err)
		return nil
	}

	tickers := make([]string, 0, len(listed))
	for ticker, status := range listed {
		if _, ok := c.statuses[status]; !ok {
			continue
		}
		// Tickers embedding a comma cannot be disambiguated against the
		// archive's CSV line format and are dropped entirely.
		if strings.Contains(ticker, ",") {
			c.logger.Warn("dropping malformed ticker", "ticker", ticker)
			continue
		}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	c.logger.Info("active markets discovered",
		"listed", len(listed),
		"active", len(tickers))
	return tickers
}
