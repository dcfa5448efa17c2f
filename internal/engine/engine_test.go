package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fluxline/pulsecore/internal/source"
)

func TestApplyStressModeClampsToAggressiveValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StressMode = true
	clamped := cfg.ApplyStressMode()

	if clamped.PerSourceQueueSize > 2 {
		t.Fatalf("expected per_source clamped to <=2, got %d", clamped.PerSourceQueueSize)
	}
	if clamped.MergedQueueSize > 5 {
		t.Fatalf("expected merged clamped to <=5, got %d", clamped.MergedQueueSize)
	}
	if clamped.ArtificialDelay < 30*time.Millisecond {
		t.Fatalf("expected delay_ms floored to 30ms, got %v", clamped.ArtificialDelay)
	}
	if clamped.LogBurstProbability < 0.9 {
		t.Fatalf("expected log_prob floored to 0.9, got %v", clamped.LogBurstProbability)
	}
}

func TestApplyStressModeNoopWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	clamped := cfg.ApplyStressMode()
	if clamped != cfg {
		t.Fatal("expected no change when stress mode disabled")
	}
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recordingSink) Send(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recordingSink) count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func TestEngineRunEmitsAggregatesAndMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WindowSize = 50 * time.Millisecond
	cfg.MetricsInterval = 40 * time.Millisecond

	sensor := source.NewSensorSource(source.SensorConfig{SensorID: "s1", Interval: 5 * time.Millisecond}, NewRNG(1))
	eng := New(cfg, []source.Source{sensor})

	sink := &recordingSink{}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	eng.Run(ctx, sink)

	if sink.count("agg") == 0 {
		t.Fatal("expected at least one aggregate message")
	}
	if sink.count("metrics") == 0 {
		t.Fatal("expected at least one metrics snapshot message")
	}
	snap := eng.Collector().Snapshot()
	if snap.IngestedTotal == 0 {
		t.Fatal("expected the sensor source to have ingested events")
	}
}
