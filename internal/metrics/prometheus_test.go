package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fluxline/pulsecore/internal/events"
)

func TestPrometheusExporterTracksCumulativeCountersAsDeltas(t *testing.T) {
	reg := prometheus.NewRegistry()
	exp := NewPrometheusExporter(reg)

	c := NewCollector()
	c.RecordIngest(events.SourceSensor, false, map[string]int{"sensor": 1})
	c.RecordIngest(events.SourceSensor, false, map[string]int{"sensor": 1})
	exp.Observe(c.Snapshot())

	if got := testutil.ToFloat64(exp.ingestedTotal.WithLabelValues("sensor")); got != 2 {
		t.Fatalf("expected 2 ingested after first observe, got %v", got)
	}

	c.RecordIngest(events.SourceSensor, false, map[string]int{"sensor": 1})
	exp.Observe(c.Snapshot())

	if got := testutil.ToFloat64(exp.ingestedTotal.WithLabelValues("sensor")); got != 3 {
		t.Fatalf("expected cumulative 3 ingested after second observe, got %v", got)
	}
}

func TestPrometheusExporterDropRatioAndQueueDepthGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	exp := NewPrometheusExporter(reg)

	c := NewCollector()
	c.RecordIngest(events.SourceSensor, true, map[string]int{"sensor": 5, "merged": 12})
	exp.Observe(c.Snapshot())

	if got := testutil.ToFloat64(exp.dropRatio); got != 1 {
		t.Fatalf("expected drop ratio 1, got %v", got)
	}
	if got := testutil.ToFloat64(exp.queueDepth.WithLabelValues("merged")); got != 12 {
		t.Fatalf("expected merged queue depth 12, got %v", got)
	}
}

func TestPrometheusExporterLatencyGaugesUseMillisecondFields(t *testing.T) {
	reg := prometheus.NewRegistry()
	exp := NewPrometheusExporter(reg)

	c := NewCollector()
	for i := 1; i <= 100; i++ {
		c.RecordProcessed(events.SourceSensor, float64(i))
	}
	exp.Observe(c.Snapshot())

	if got := testutil.ToFloat64(exp.latencyP50); got != 50 {
		t.Fatalf("expected p50 gauge 50, got %v", got)
	}
	if got := testutil.ToFloat64(exp.latencyP95); got != 95 {
		t.Fatalf("expected p95 gauge 95, got %v", got)
	}
}

func TestPrometheusExporterAggregatedCounterNeverGoesNegativeOnRestart(t *testing.T) {
	reg := prometheus.NewRegistry()
	exp := NewPrometheusExporter(reg)

	c := NewCollector()
	c.RecordProcessed(events.SourceSensor, 1)
	c.RecordAggregated()
	c.RecordAggregated()
	exp.Observe(c.Snapshot())
	if got := testutil.ToFloat64(exp.aggregatedTotal); got != 2 {
		t.Fatalf("expected 2 aggregated, got %v", got)
	}

	// Simulate a collector restart: cumulative value drops below what was
	// already observed. The exporter must treat this as a fresh start
	// rather than emit a negative Add, which would panic.
	fresh := NewCollector()
	fresh.RecordProcessed(events.SourceSensor, 1)
	fresh.RecordAggregated()
	exp.Observe(fresh.Snapshot())
	if got := testutil.ToFloat64(exp.aggregatedTotal); got != 3 {
		t.Fatalf("expected 3 aggregated after simulated restart, got %v", got)
	}
}
