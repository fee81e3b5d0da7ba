// Package models provides data structures and validation for perpetual-futures
// funding-rate data. This package contains the core records flowing through the
// collection pipeline: single funding observations and the per-market series
// they are folded into.
package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// FundingObservation represents one funding payment observation for a
// perpetual market. Observations are immutable once fetched.
type FundingObservation struct {
	Ticker      string          `json:"ticker"`
	EffectiveAt time.Time       `json:"effective_at"`
	Rate        decimal.Decimal `json:"rate"`
}

// ValidationError represents an observation validation error with field
// context.
type ValidationError struct {
	Field   string // Field is the name of the field that failed validation
	Message string // Message describes the validation failure
}

// Error implements the error interface for ValidationError.
func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks that the observation carries a ticker and a usable
// effective timestamp.
func (o *FundingObservation) Validate() error {
	if o.Ticker == "" {
		return &ValidationError{Field: "ticker", Message: "ticker cannot be empty"}
	}
	if o.EffectiveAt.IsZero() {
		return &ValidationError{Field: "effective_at", Message: "effective timestamp cannot be zero"}
	}
	return nil
}

// FundingSeries is the authoritative funding state for one market at a point
// in the pipeline: a mapping from effective timestamp, truncated to whole
// seconds and keyed as Unix seconds UTC, to the funding rate at that time.
// At most one rate exists per distinct second.
type FundingSeries map[int64]decimal.Decimal

// Put upserts a rate at the given time, truncated to whole-second resolution.
// The write is unconditional: the last write for a second wins.
func (s FundingSeries) Put(t time.Time, rate decimal.Decimal) {
	s[t.Truncate(time.Second).Unix()] = rate
}

// PutIfAbsent inserts a rate at the given Unix-second timestamp only when the
// timestamp is not already present. It reports whether the value was inserted.
func (s FundingSeries) PutIfAbsent(ts int64, rate decimal.Decimal) bool {
	if _, exists := s[ts]; exists {
		return false
	}
	s[ts] = rate
	return true
}

// Timestamps returns the series timestamps sorted ascending.
func (s FundingSeries) Timestamps() []int64 {
	timestamps := make([]int64, 0, len(s))
	for ts := range s {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps
}
