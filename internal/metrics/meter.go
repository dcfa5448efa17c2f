// Package metrics holds the sliding-window rate/latency meters and the
// collector that aggregates them into a point-in-time snapshot.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	defaultRateWindow    = 10 * time.Second
	defaultLatencySample = 2000
)

// RateMeter computes events-per-second over a sliding window by keeping a
// deque of mark timestamps and trimming anything older than the window on
// every observation and every read.
type RateMeter struct {
	window time.Duration

	mu    sync.Mutex
	marks []time.Time
}

// NewRateMeter returns a RateMeter sliding over the given window.
func NewRateMeter(window time.Duration) *RateMeter {
	if window <= 0 {
		window = defaultRateWindow
	}
	return &RateMeter{window: window}
}

// Mark records one event at the current time.
func (m *RateMeter) Mark() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.marks = append(m.marks, now)
	m.trim(now)
}

func (m *RateMeter) trim(now time.Time) {
	cutoff := now.Add(-m.window)
	i := 0
	for i < len(m.marks) && m.marks[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		m.marks = m.marks[i:]
	}
}

// RatePerSecond returns the current events-per-second estimate.
func (m *RateMeter) RatePerSecond() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.trim(now)
	return float64(len(m.marks)) / m.window.Seconds()
}

// LatencyMeter keeps the last maxSamples latency observations (milliseconds)
// in a bounded FIFO and computes quantiles by sort-and-index on snapshot.
type LatencyMeter struct {
	maxSamples int

	mu      sync.Mutex
	samples []float64
}

// NewLatencyMeter returns a LatencyMeter retaining at most maxSamples
// observations.
func NewLatencyMeter(maxSamples int) *LatencyMeter {
	if maxSamples <= 0 {
		maxSamples = defaultLatencySample
	}
	return &LatencyMeter{maxSamples: maxSamples}
}

// Add records one latency sample in milliseconds.
func (m *LatencyMeter) Add(latencyMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, latencyMs)
	if over := len(m.samples) - m.maxSamples; over > 0 {
		m.samples = m.samples[over:]
	}
}

// LatencySnapshot is the avg/p50/p95 view of a LatencyMeter at a point in
// time. A nil Avg/P50/P95 (represented here via HasData) means no samples
// have been recorded yet.
type LatencySnapshot struct {
	HasData bool
	AvgMs   float64
	P50Ms   float64
	P95Ms   float64
}

// Snapshot sorts the retained samples and indexes p50 at
// floor(0.5*(n-1)) and p95 at floor(0.95*(n-1)). Window aggregation-time
// and count statistics use a separate ceil-indexed convention; see
// ceilQuantile.
func (m *LatencyMeter) Snapshot() LatencySnapshot {
	m.mu.Lock()
	xs := append([]float64(nil), m.samples...)
	m.mu.Unlock()

	if len(xs) == 0 {
		return LatencySnapshot{}
	}

	sort.Float64s(xs)
	n := len(xs)
	var sum float64
	for _, v := range xs {
		sum += v
	}

	return LatencySnapshot{
		HasData: true,
		AvgMs:   sum / float64(n),
		P50Ms:   xs[int(0.50*float64(n-1))],
		P95Ms:   xs[int(0.95*float64(n-1))],
	}
}

// ceilQuantile computes xs[ceil(q*(n-1))] on an already-sorted slice, the
// convention used for window aggregation-time/count statistics.
func ceilQuantile(xs []float64, q float64) float64 {
	n := len(xs)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(q * float64(n-1)))
	if idx >= n {
		idx = n - 1
	}
	if idx < 0 {
		idx = 0
	}
	return xs[idx]
}

// sortFloats sorts xs in place; a thin wrapper so callers outside this file
// don't need to import "sort" directly.
func sortFloats(xs []float64) {
	sort.Float64s(xs)
}
