// Package collector provides the orchestration for funding-rate harvesting:
// market discovery, the per-day rate-limited fetch fan-out, series
// accumulation, and persistence into the per-market archive.
//
// The run-level policy is best-effort: catalog and per-market fetch failures
// are absorbed where they occur and surfaced as counters and log events, and
// a run never hard-fails. Re-running fills any gaps left behind.
package collector

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/johnayoung/go-funding-archiver/internal/archive"
	"github.com/johnayoung/go-funding-archiver/internal/indexer"
	"github.com/johnayoung/go-funding-archiver/internal/models"
)

// Clock supplies the current time. A fixed implementation pins the processing
// date range in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used outside tests.
type SystemClock struct{}

// Now implements the Clock interface.
func (SystemClock) Now() time.Time { return time.Now() }

// Config configures a collection run.
type Config struct {
	// StartDate is the first day of the historical range (UTC). Ignored when
	// DeploymentDate is set.
	StartDate time.Time

	// DeploymentDate, when set, restricts the run to that single calendar day
	// and filters accumulated observations to it.
	DeploymentDate *time.Time

	// FetchLimit is the number of funding entries requested per market per
	// day.
	FetchLimit int

	// ActiveStatuses is the set of market statuses harvested.
	ActiveStatuses []string

	Logger *slog.Logger
	Clock  Clock
}

// DefaultConfig returns a configuration with the reference-deployment
// defaults.
func DefaultConfig() *Config {
	return &Config{
		StartDate:      time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		FetchLimit:     DefaultFetchLimit,
		ActiveStatuses: []string{"ACTIVE"},
		Logger:         slog.Default(),
		Clock:          SystemClock{},
	}
}

// Collector drives the end-to-end harvest.
type Collector struct {
	catalog     *Catalog
	fetcher     *Fetcher
	accumulator *Accumulator
	store       archive.SeriesStore
	config      *Config
	metrics     *runMetrics
	logger      *slog.Logger
	clock       Clock
}

// New creates a Collector wired to the given indexer client and series store.
func New(client indexer.IndexerClient, store archive.SeriesStore, config *Config) *Collector {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	metrics := newRunMetrics()
	return &Collector{
		catalog:     NewCatalog(client, config.ActiveStatuses, config.Logger),
		fetcher:     NewFetcher(client, config.FetchLimit, metrics, config.Logger),
		accumulator: NewAccumulator(metrics, config.Logger),
		store:       store,
		config:      config,
		metrics:     metrics,
		logger:      config.Logger,
		clock:       config.Clock,
	}
}

// Run executes one collection run: discover markets once, fetch and
// accumulate each processing day in ascending order, then persist every
// non-empty series.
//
// Run always reports success; failures are absorbed at lower layers and show
// up as missing data and counters, never as a run-level error. A cancelled
// context stops fetching between days but still persists what was
// accumulated.
func (c *Collector) Run(ctx context.Context) bool {
	runID := uuid.New().String()[:8]
	logger := c.logger.With("run_id", runID)
	startTime := time.Now()

	days := c.processingDays()
	logger.Info("starting funding harvest",
		"days", len(days),
		"first_day", days[0].Format("2006-01-02"),
		"last_day", days[len(days)-1].Format("2006-01-02"),
		"single_day_filter", c.config.DeploymentDate != nil)

	tickers := c.catalog.ActiveTickers(ctx)
	c.metrics.recordMarketsDiscovered(len(tickers))

	series := make(map[string]models.FundingSeries)
	for _, day := range days {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, persisting partial results", "error", ctx.Err())
			break
		}
		dayResults := c.fetcher.FetchDay(ctx, day, tickers)
		c.accumulator.Accumulate(day, series, dayResults, c.config.DeploymentDate)
	}

	for _, ticker := range sortedTickers(series) {
		marketSeries := series[ticker]
		if len(marketSeries) == 0 {
			continue
		}
		lines, err := c.store.Store(ticker, marketSeries)
		if err != nil {
			// Fatal for this market's persistence, not for the run.
			c.metrics.recordPersistFailure()
			logger.Error("archive write failed", "ticker", ticker, "error", err)
			continue
		}
		c.metrics.recordArchiveWrite(lines)
	}

	stats := c.metrics.snapshot()
	logger.Info("funding harvest completed",
		"duration", time.Since(startTime),
		"markets_discovered", stats.MarketsDiscovered,
		"fetch_successes", stats.FetchSuccesses,
		"fetch_failures", stats.FetchFailures,
		"observations_retained", stats.ObservationsRetained,
		"files_written", stats.FilesWritten,
		"lines_written", stats.LinesWritten,
		"persist_failures", stats.PersistFailures)

	return true
}

// Stats returns a snapshot of the run counters.
func (c *Collector) Stats() RunStats {
	return c.metrics.snapshot()
}

// processingDays resolves the date range: the single deployment date when
// set, otherwise every UTC calendar day from the configured start date
// through today, inclusive, ascending.
func (c *Collector) processingDays() []time.Time {
	if c.config.DeploymentDate != nil {
		return []time.Time{utcMidnight(*c.config.DeploymentDate)}
	}

	first := utcMidnight(c.config.StartDate)
	last := utcMidnight(c.clock.Now())
	if last.Before(first) {
		last = first
	}

	days := make([]time.Time, 0, int(last.Sub(first)/(24*time.Hour))+1)
	for day := first; !day.After(last); day = day.Add(24 * time.Hour) {
		days = append(days, day)
	}
	return days
}

func utcMidnight(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func sortedTickers(series map[string]models.FundingSeries) []string {
	tickers := make([]string, 0, len(series))
	for ticker := range series {
		tickers = append(tickers, ticker)
	}
	// Deterministic persist order keeps logs and tests stable.
	sort.Strings(tickers)
	return tickers
}
