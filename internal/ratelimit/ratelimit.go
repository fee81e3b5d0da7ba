// Package ratelimit provides the shared request budget for all outbound
// indexer calls. The budget is expressed as N requests per fixed window and
// enforced with golang.org/x/time/rate: permits are spaced evenly across the
// window, so no sliding window of the configured duration ever sees more than
// N acquisitions.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRequests is the reference-deployment budget of 25 requests.
	DefaultRequests = 25

	// DefaultWindow is the reference-deployment window of 10 seconds.
	DefaultWindow = 10 * time.Second
)

// Limiter gates outbound requests to at most `requests` per `window`. It is
// safe for concurrent callers and never rejects on budget pressure, only
// delays.
type Limiter struct {
	limiter  *rate.Limiter
	requests int
	window   time.Duration
}

// New creates a limiter allowing `requests` permits per `window`.
// Non-positive arguments fall back to the reference-deployment budget.
func New(requests int, window time.Duration) *Limiter {
	if requests <= 0 {
		requests = DefaultRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Every(window/time.Duration(requests)), 1),
		requests: requests,
		window:   window,
	}
}

// Acquire blocks the caller until a request slot is available. The only error
// condition is context cancellation; a long queue merely delays.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Budget returns the configured request count and window.
func (l *Limiter) Budget() (int, time.Duration) {
	return l.requests, l.window
}
