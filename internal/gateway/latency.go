package gateway

import (
	"math"
	"sort"
	"sync"
)

// LatencySummary describes the retained lag samples in milliseconds.
type LatencySummary struct {
	Count int     `json:"count"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// LatencyTracker keeps the last N event-to-broadcast lag samples (ms) in a
// circular buffer.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	pos     int
	count   int
}

// NewLatencyTracker creates a tracker that holds the last capacity samples.
func NewLatencyTracker(capacity int) *LatencyTracker {
	if capacity <= 0 {
		capacity = 10000
	}
	return &LatencyTracker{samples: make([]float64, capacity)}
}

// Record adds a sample in milliseconds.
func (lt *LatencyTracker) Record(ms float64) {
	lt.mu.Lock()
	lt.samples[lt.pos] = ms
	lt.pos = (lt.pos + 1) % len(lt.samples)
	if lt.count < len(lt.samples) {
		lt.count++
	}
	lt.mu.Unlock()
}

// Summary sorts a copy of the retained samples and reports percentiles.
func (lt *LatencyTracker) Summary() LatencySummary {
	lt.mu.Lock()
	sorted := make([]float64, lt.count)
	if lt.count == len(lt.samples) {
		copy(sorted, lt.samples[lt.pos:])
		copy(sorted[len(lt.samples)-lt.pos:], lt.samples[:lt.pos])
	} else {
		copy(sorted, lt.samples[:lt.count])
	}
	lt.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}
	sort.Float64s(sorted)
	return LatencySummary{
		Count: len(sorted),
		P50:   percentile(sorted, 0.50),
		P95:   percentile(sorted, 0.95),
		P99:   percentile(sorted, 0.99),
		Max:   sorted[len(sorted)-1],
	}
}

// Percentiles returns p50, p95 and p99; zeros when empty.
func (lt *LatencyTracker) Percentiles() (p50, p95, p99 float64) {
	s := lt.Summary()
	return s.P50, s.P95, s.P99
}

// Count returns the number of retained samples.
func (lt *LatencyTracker) Count() int {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.count
}

// percentile interpolates the p-th percentile (0..1) of a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	rank := p * float64(n-1)
	lower := int(math.Floor(rank))
	if lower+1 >= n {
		return sorted[n-1]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
