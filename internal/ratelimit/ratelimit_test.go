package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetDefaults(t *testing.T) {
	limiter := New(0, 0)
	requests, window := limiter.Budget()
	assert.Equal(t, DefaultRequests, requests)
	assert.Equal(t, DefaultWindow, window)
}

// TestAcquireRespectsWindowBudget verifies the core property: across any
// sliding window of the configured duration, no more than N acquisitions are
// granted, even with concurrent callers.
func TestAcquireRespectsWindowBudget(t *testing.T) {
	const (
		requests = 5
		window   = 250 * time.Millisecond
		total    = 12
	)

	limiter := New(requests, window)

	var mu sync.Mutex
	grants := make([]time.Time, 0, total)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, limiter.Acquire(context.Background()))
			mu.Lock()
			grants = append(grants, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, grants, total)
	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })

	// Timestamps are taken after Wait returns, so allow a little scheduling
	// slack below the exact window.
	const slack = 25 * time.Millisecond
	for i := 0; i+requests < len(grants); i++ {
		// Grant i+requests is the (requests+1)-th acquisition after grant i;
		// it must fall outside the window that began at grant i.
		elapsed := grants[i+requests].Sub(grants[i])
		assert.GreaterOrEqual(t, elapsed, window-slack,
			"more than %d acquisitions inside one %v window", requests, window)
	}
}

func TestAcquireHonorsCancellation(t *testing.T) {
	limiter := New(1, time.Hour)

	// Drain the only immediately available slot.
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	require.Error(t, err)
}
