// HTTP client for the perpetual markets indexing service.
//
// The client shares one request-rate budget with every other outbound call in
// the process and retries transient failures with exponential backoff before
// reporting an error to the caller.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/johnayoung/go-funding-archiver/internal/ratelimit"
)

const (
	// DefaultBaseURL is the public indexer endpoint for the reference
	// deployment.
	DefaultBaseURL = "https://api.dydx.exchange/v3"

	// API endpoints
	marketsEndpoint = "/perpetualMarkets"
	fundingEndpoint = "/historicalFunding/%s"

	// Request configuration
	defaultRequestTimeout = 30 * time.Second

	// Retry configuration
	initialRetryDelay = 500 * time.Millisecond
	maxRetryDelay     = 30 * time.Second
	maxRetryElapsed   = 2 * time.Minute
	retryMultiplier   = 2.0
	retryJitter       = 0.5
)

// Client implements IndexerClient over the indexer's REST API.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an indexer client backed by the shared request limiter.
// An empty baseURL selects the reference deployment endpoint.
func NewClient(baseURL string, limiter *ratelimit.Limiter) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		baseURL: baseURL,
		logger:  slog.Default(),
	}
}

// NewClientWithLogger creates an indexer client with a custom logger.
func NewClientWithLogger(baseURL string, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	client := NewClient(baseURL, limiter)
	client.logger = logger
	return client
}

// SetTimeout overrides the per-request HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
}

// PerpetualMarkets implements the MarketLister interface.
func (c *Client) PerpetualMarkets(ctx context.Context) (map[string]string, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	body, err := c.get(ctx, c.baseURL+marketsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch perpetual markets: %w", err)
	}

	var apiResponse struct {
		Markets map[string]perpetualMarketPayload `json:"markets"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse perpetual markets response: %w", err)
	}

	statuses := make(map[string]string, len(apiResponse.Markets))
	for ticker, market := range apiResponse.Markets {
		// Some payloads repeat the ticker in the market body; the body wins
		// when present.
		if market.Market != "" {
			ticker = market.Market
		}
		statuses[ticker] = market.Status
	}

	c.logger.Debug("fetched perpetual markets", "count", len(statuses))
	return statuses, nil
}

// HistoricalFunding implements the FundingProvider interface.
func (c *Client) HistoricalFunding(ctx context.Context, ticker string, effectiveBeforeOrAt time.Time, limit int) ([]FundingEntry, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	requestURL := fmt.Sprintf(c.baseURL+fundingEndpoint, url.PathEscape(ticker))

	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("effectiveBeforeOrAt", effectiveBeforeOrAt.UTC().Format(time.RFC3339))

	body, err := c.get(ctx, requestURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch historical funding for %s: %w", ticker, err)
	}

	var apiResponse struct {
		HistoricalFunding []FundingEntry `json:"historicalFunding"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse historical funding response for %s: %w", ticker, err)
	}

	c.logger.Debug("fetched historical funding",
		"ticker", ticker,
		"count", len(apiResponse.HistoricalFunding),
		"effective_before_or_at", effectiveBeforeOrAt)

	return apiResponse.HistoricalFunding, nil
}

// get issues a GET request with retry on transient failures. Network errors,
// HTTP 5xx and 429 are retried with exponential backoff; other 4xx responses
// are permanent.
func (c *Client) get(ctx context.Context, requestURL string) ([]byte, error) {
	var body []byte

	backoffConfig := backoff.NewExponentialBackOff()
	backoffConfig.InitialInterval = initialRetryDelay
	backoffConfig.MaxInterval = maxRetryDelay
	backoffConfig.MaxElapsedTime = maxRetryElapsed
	backoffConfig.Multiplier = retryMultiplier
	backoffConfig.RandomizationFactor = retryJitter

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}

		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "go-funding-archiver/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err) // Retryable
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			if retryAfter := parseRetryAfter(resp.Header.Get("Retry-After")); retryAfter > 0 {
				c.logger.Warn("rate limited by indexer, waiting", "retry_after", retryAfter)
				select {
				case <-time.After(retryAfter):
				case <-ctx.Done():
					return backoff.Permanent(ctx.Err())
				}
			}
			return fmt.Errorf("rate limited") // Retryable
		}

		responseBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err) // Retryable
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, string(responseBody))
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("client error %d: %s", resp.StatusCode, string(responseBody)))
		}

		body = responseBody
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoffConfig, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(t)
	}
	return 0
}

// perpetualMarketPayload is the subset of the market body the collector uses.
type perpetualMarketPayload struct {
	Market string `json:"market"`
	Status string `json:"status"`
}
