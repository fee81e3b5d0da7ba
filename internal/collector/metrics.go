package collector

import "sync"

// RunStats summarizes one collection run. Failures are reported here and in
// logs rather than escalated: the run-level policy is best-effort, never
// hard-fail.
type RunStats struct {
	MarketsDiscovered    int
	FetchSuccesses       int64
	FetchFailures        int64
	ObservationsRetained int64
	FilesWritten         int64
	LinesWritten         int64
	PersistFailures      int64
}

// runMetrics tracks run counters behind a mutex; fetch workers report into it
// concurrently.
type runMetrics struct {
	mu    sync.Mutex
	stats RunStats
}

func newRunMetrics() *runMetrics {
	return &runMetrics{}
}

func (m *runMetrics) recordMarketsDiscovered(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.MarketsDiscovered = count
}

func (m *runMetrics) recordFetchSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FetchSuccesses++
}

func (m *runMetrics) recordFetchFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FetchFailures++
}

func (m *runMetrics) recordRetained(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.ObservationsRetained += int64(count)
}

func (m *runMetrics) recordArchiveWrite(lines int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.FilesWritten++
	m.stats.LinesWritten += int64(lines)
}

func (m *runMetrics) recordPersistFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.PersistFailures++
}

func (m *runMetrics) snapshot() RunStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
