package metrics

import (
	"sync"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

const defaultWindowHistory = 200

// WindowRecord is the metrics-owned summary of one closed tumbling window,
// kept in a bounded FIFO of the last windowMaxSamples entries.
type WindowRecord struct {
	Start              time.Time
	End                time.Time
	CountTotal         int
	CountBySource      map[events.Source]int
	AggregatesEmitted  int
	AggregationTimeMs  float64
}

// Collector is the single side-channel metrics sink written by the bus
// (ingest path) and the pipeline (processed/aggregated/window paths). It is
// guarded by a mutex because, unlike the reference single-loop deployment,
// this port runs the bus and pipeline on separate goroutines.
type Collector struct {
	mu sync.Mutex

	ingestedTotal   int64
	ingestedBySrc   map[events.Source]int64
	droppedTotal    int64
	droppedBySrc    map[events.Source]int64

	processedTotal  int64
	aggregatedTotal int64
	processedBySrc  map[events.Source]int64

	processRateBySrc map[events.Source]*RateMeter
	latencyBySrc     map[events.Source]*LatencyMeter

	ingestRate    *RateMeter
	processRate   *RateMeter
	aggregateRate *RateMeter

	globalLatency *LatencyMeter

	lastQueueSizes map[string]int

	windowMaxSamples int
	windows          []WindowRecord
}

// NewCollector returns a ready-to-use Collector.
func NewCollector() *Collector {
	return &Collector{
		ingestedBySrc:    make(map[events.Source]int64),
		droppedBySrc:     make(map[events.Source]int64),
		processedBySrc:   make(map[events.Source]int64),
		processRateBySrc: make(map[events.Source]*RateMeter),
		latencyBySrc:     make(map[events.Source]*LatencyMeter),
		ingestRate:       NewRateMeter(defaultRateWindow),
		processRate:      NewRateMeter(defaultRateWindow),
		aggregateRate:    NewRateMeter(defaultRateWindow),
		globalLatency:    NewLatencyMeter(defaultLatencySample),
		lastQueueSizes:   make(map[string]int),
		windowMaxSamples: defaultWindowHistory,
	}
}

func (c *Collector) ensureSourceLocked(source events.Source) {
	if _, ok := c.processRateBySrc[source]; !ok {
		c.processRateBySrc[source] = NewRateMeter(defaultRateWindow)
	}
	if _, ok := c.latencyBySrc[source]; !ok {
		c.latencyBySrc[source] = NewLatencyMeter(defaultLatencySample)
	}
}

// RecordIngest is called by the bus for every publish attempt.
func (c *Collector) RecordIngest(source events.Source, dropped bool, queueSizes map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ingestedTotal++
	c.ingestedBySrc[source]++
	c.ingestRate.Mark()

	if dropped {
		c.droppedTotal++
		c.droppedBySrc[source]++
	}

	sizes := make(map[string]int, len(queueSizes))
	for k, v := range queueSizes {
		sizes[k] = v
	}
	c.lastQueueSizes = sizes
}

// RecordProcessed is called by the pipeline after pushing an event to the
// window processor.
func (c *Collector) RecordProcessed(source events.Source, latencyMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.processedTotal++
	c.processRate.Mark()
	c.globalLatency.Add(latencyMs)

	c.ensureSourceLocked(source)
	c.processedBySrc[source]++
	c.processRateBySrc[source].Mark()
	c.latencyBySrc[source].Add(latencyMs)
}

// RecordAggregated is called once per aggregate event emitted.
func (c *Collector) RecordAggregated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aggregatedTotal++
	c.aggregateRate.Mark()
}

// RecordWindow appends a closed window's summary to the bounded FIFO.
func (c *Collector) RecordWindow(start, end time.Time, countBySource map[events.Source]int, aggregatesEmitted int, aggregationTimeMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	cp := make(map[events.Source]int, len(countBySource))
	for k, v := range countBySource {
		cp[k] = v
		total += v
	}

	c.windows = append(c.windows, WindowRecord{
		Start:             start,
		End:               end,
		CountTotal:        total,
		CountBySource:     cp,
		AggregatesEmitted: aggregatesEmitted,
		AggregationTimeMs: aggregationTimeMs,
	})

	if over := len(c.windows) - c.windowMaxSamples; over > 0 {
		c.windows = c.windows[over:]
	}
}

// PerSourceStats is one source's slice of a Snapshot.
type PerSourceStats struct {
	ProcessedTotal int64
	ProcessEPS     float64
	Latency        LatencySnapshot
}

// WindowStats summarizes aggregation-time/count statistics over the
// retained window history using the ceil-index quantile convention.
type WindowStats struct {
	HasData               bool
	LastWindow            *WindowRecord
	AggTimeAvgMs          float64
	AggTimeP50Ms          float64
	AggTimeP95Ms          float64
	CountAvg              float64
	CountP50              float64
	CountP95              float64
	AggregatesEmittedMean float64
}

// Snapshot is an internally consistent, point-in-time copy of all metrics.
type Snapshot struct {
	IngestedTotal  int64
	IngestedBySrc  map[events.Source]int64
	DroppedTotal   int64
	DroppedBySrc   map[events.Source]int64
	ProcessedTotal int64
	AggregatedTotal int64

	IngestEPS    float64
	ProcessEPS   float64
	AggregateEPS float64

	GlobalLatency LatencySnapshot
	PerSource     map[events.Source]PerSourceStats

	QueueSizes map[string]int
	DropRatio  float64

	Windows WindowStats
}

// Snapshot takes a consistent copy of the collector's state. Totals in the
// returned snapshot always equal the sum of their per-source breakdowns,
// since both are copied under the same lock.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		IngestedTotal:   c.ingestedTotal,
		DroppedTotal:    c.droppedTotal,
		ProcessedTotal:  c.processedTotal,
		AggregatedTotal: c.aggregatedTotal,
		IngestEPS:       c.ingestRate.RatePerSecond(),
		ProcessEPS:      c.processRate.RatePerSecond(),
		AggregateEPS:    c.aggregateRate.RatePerSecond(),
		GlobalLatency:   c.globalLatency.Snapshot(),
		IngestedBySrc:   make(map[events.Source]int64, len(c.ingestedBySrc)),
		DroppedBySrc:    make(map[events.Source]int64, len(c.droppedBySrc)),
		PerSource:       make(map[events.Source]PerSourceStats),
		QueueSizes:      make(map[string]int, len(c.lastQueueSizes)),
	}

	for k, v := range c.ingestedBySrc {
		snap.IngestedBySrc[k] = v
	}
	for k, v := range c.droppedBySrc {
		snap.DroppedBySrc[k] = v
	}
	for k, v := range c.lastQueueSizes {
		snap.QueueSizes[k] = v
	}

	seen := make(map[events.Source]struct{})
	for src := range c.ingestedBySrc {
		seen[src] = struct{}{}
	}
	for src := range c.processedBySrc {
		seen[src] = struct{}{}
	}
	for src := range seen {
		var eps float64
		var lat LatencySnapshot
		if rm, ok := c.processRateBySrc[src]; ok {
			eps = rm.RatePerSecond()
		}
		if lm, ok := c.latencyBySrc[src]; ok {
			lat = lm.Snapshot()
		}
		snap.PerSource[src] = PerSourceStats{
			ProcessedTotal: c.processedBySrc[src],
			ProcessEPS:     eps,
			Latency:        lat,
		}
	}

	if snap.IngestedTotal > 0 {
		snap.DropRatio = float64(snap.DroppedTotal) / float64(snap.IngestedTotal)
	}

	snap.Windows = c.windowSummaryLocked()

	return snap
}

func (c *Collector) windowSummaryLocked() WindowStats {
	if len(c.windows) == 0 {
		return WindowStats{}
	}

	aggTimes := make([]float64, len(c.windows))
	counts := make([]float64, len(c.windows))
	var aggTimeSum, countSum, emittedSum float64

	for i, w := range c.windows {
		aggTimes[i] = w.AggregationTimeMs
		counts[i] = float64(w.CountTotal)
		aggTimeSum += w.AggregationTimeMs
		countSum += float64(w.CountTotal)
		emittedSum += float64(w.AggregatesEmitted)
	}

	sortedAggTimes := append([]float64(nil), aggTimes...)
	sortedCounts := append([]float64(nil), counts...)
	sortFloats(sortedAggTimes)
	sortFloats(sortedCounts)

	n := float64(len(c.windows))
	last := c.windows[len(c.windows)-1]
	lastCopy := last
	lastCopy.CountBySource = make(map[events.Source]int, len(last.CountBySource))
	for k, v := range last.CountBySource {
		lastCopy.CountBySource[k] = v
	}

	return WindowStats{
		HasData:               true,
		LastWindow:            &lastCopy,
		AggTimeAvgMs:          aggTimeSum / n,
		AggTimeP50Ms:          ceilQuantile(sortedAggTimes, 0.50),
		AggTimeP95Ms:          ceilQuantile(sortedAggTimes, 0.95),
		CountAvg:              countSum / n,
		CountP50:              ceilQuantile(sortedCounts, 0.50),
		CountP95:              ceilQuantile(sortedCounts, 0.95),
		AggregatesEmittedMean: emittedSum / n,
	}
}
