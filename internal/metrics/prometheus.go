package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusExporter mirrors Collector snapshots onto Prometheus
// instruments, adapted from the teacher's package-level metric
// declarations but built as a registerable type instead of process
// globals, so more than one engine instance can run in a test process.
//
// Collector.Snapshot reports cumulative totals, not deltas, so the
// exporter tracks the last-seen cumulative value per label and Adds only
// the delta to each Prometheus counter on every Observe call.
type PrometheusExporter struct {
	ingestedTotal   *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	processedTotal  *prometheus.CounterVec
	aggregatedTotal prometheus.Counter

	ingestEPS    prometheus.Gauge
	processEPS   prometheus.Gauge
	aggregateEPS prometheus.Gauge
	dropRatio    prometheus.Gauge
	queueDepth   *prometheus.GaugeVec

	latencyP50 prometheus.Gauge
	latencyP95 prometheus.Gauge

	windowAggTimeMs *prometheus.HistogramVec

	mu              sync.Mutex
	lastIngested    map[string]int64
	lastDropped     map[string]int64
	lastProcessed   map[string]int64
	lastAggregated  int64
}

// NewPrometheusExporter builds and registers a set of instruments against
// reg. Use prometheus.NewRegistry() in tests to avoid polluting the
// global default registry.
func NewPrometheusExporter(reg prometheus.Registerer) *PrometheusExporter {
	e := &PrometheusExporter{
		ingestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsecore_ingested_total",
			Help: "Total publish attempts recorded by the bus, including dropped ones, by source.",
		}, []string{"source"}),
		droppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsecore_dropped_total",
			Help: "Total events dropped at publish time, by source.",
		}, []string{"source"}),
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsecore_processed_total",
			Help: "Total events processed by the pipeline, by source.",
		}, []string{"source"}),
		aggregatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsecore_aggregated_total",
			Help: "Total aggregate events emitted across all sources.",
		}),
		ingestEPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsecore_ingest_eps",
			Help: "Events ingested per second, trailing window.",
		}),
		processEPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsecore_process_eps",
			Help: "Events processed per second, trailing window.",
		}),
		aggregateEPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsecore_aggregate_eps",
			Help: "Aggregate events emitted per second, trailing window.",
		}),
		dropRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsecore_drop_ratio",
			Help: "Ratio of dropped events to ingested events.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pulsecore_queue_depth",
			Help: "Current depth of a bus queue, by queue name.",
		}, []string{"queue"}),
		latencyP50: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsecore_latency_p50_ms",
			Help: "p50 end-to-end processing latency in milliseconds.",
		}),
		latencyP95: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsecore_latency_p95_ms",
			Help: "p95 end-to-end processing latency in milliseconds.",
		}),
		windowAggTimeMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulsecore_window_aggregation_time_ms",
			Help:    "Average window aggregation time over the retained window history, sampled once per snapshot, in milliseconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250},
		}, []string{"source"}),
	}

	e.lastIngested = make(map[string]int64)
	e.lastDropped = make(map[string]int64)
	e.lastProcessed = make(map[string]int64)

	reg.MustRegister(
		e.ingestedTotal, e.droppedTotal, e.processedTotal, e.aggregatedTotal,
		e.ingestEPS, e.processEPS, e.aggregateEPS, e.dropRatio, e.queueDepth,
		e.latencyP50, e.latencyP95, e.windowAggTimeMs,
	)

	return e
}

func deltaFor(last map[string]int64, key string, cumulative int64) float64 {
	prev := last[key]
	last[key] = cumulative
	if cumulative < prev {
		// Collector was rebuilt (e.g. engine restart); treat as a fresh start
		// rather than reporting a negative delta.
		return float64(cumulative)
	}
	return float64(cumulative - prev)
}

// Observe mirrors one Collector snapshot onto the registered instruments,
// translating Collector's cumulative counters into the deltas Prometheus
// counters expect.
func (e *PrometheusExporter) Observe(snap Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for src, n := range snap.IngestedBySrc {
		label := string(src)
		e.ingestedTotal.WithLabelValues(label).Add(deltaFor(e.lastIngested, label, int64(n)))
	}
	for src, n := range snap.DroppedBySrc {
		label := string(src)
		e.droppedTotal.WithLabelValues(label).Add(deltaFor(e.lastDropped, label, int64(n)))
	}
	for src, stats := range snap.PerSource {
		label := string(src)
		e.processedTotal.WithLabelValues(label).Add(deltaFor(e.lastProcessed, label, int64(stats.ProcessedTotal)))
	}
	aggDelta := int64(snap.AggregatedTotal) - e.lastAggregated
	if aggDelta < 0 {
		aggDelta = int64(snap.AggregatedTotal)
	}
	e.aggregatedTotal.Add(float64(aggDelta))
	e.lastAggregated = int64(snap.AggregatedTotal)

	e.ingestEPS.Set(snap.IngestEPS)
	e.processEPS.Set(snap.ProcessEPS)
	e.aggregateEPS.Set(snap.AggregateEPS)
	e.dropRatio.Set(snap.DropRatio)

	for queue, depth := range snap.QueueSizes {
		e.queueDepth.WithLabelValues(queue).Set(float64(depth))
	}

	e.latencyP50.Set(snap.GlobalLatency.P50Ms)
	e.latencyP95.Set(snap.GlobalLatency.P95Ms)

	if snap.Windows.HasData {
		e.windowAggTimeMs.WithLabelValues("all").Observe(snap.Windows.AggTimeAvgMs)
	}
}
