package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/fluxline/pulsecore/internal/aggregate"
	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
	"github.com/fluxline/pulsecore/internal/window"
)

func TestRunnerEmitsAggregatesOnWindowTransition(t *testing.T) {
	proc := window.NewProcessor(5*time.Second, nil, nil)
	reg := aggregate.NewRegistry()
	collector := metrics.NewCollector()
	out := make(chan events.Event, 10)

	r := New(proc, reg, collector, out, Hooks{})

	merged := make(chan events.Event, 10)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	merged <- events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 1.0}, nil).WithTimestamp(base)
	merged <- events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 2.0}, nil).WithTimestamp(base.Add(time.Second))
	merged <- events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 3.0}, nil).WithTimestamp(base.Add(6*time.Second))
	close(merged)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Run(ctx, merged)

	select {
	case agg := <-out:
		if v, _ := agg.PayloadFloat("value"); v != 1.5 {
			t.Fatalf("expected avg of 1 and 2 = 1.5, got %v", v)
		}
	default:
		t.Fatal("expected an aggregate event on the output channel")
	}

	snap := collector.Snapshot()
	if snap.ProcessedTotal != 3 {
		t.Fatalf("expected 3 processed events, got %d", snap.ProcessedTotal)
	}
	if snap.AggregatedTotal == 0 {
		t.Fatal("expected at least one aggregated event recorded")
	}
}

func TestRunnerFlushesOnChannelClose(t *testing.T) {
	proc := window.NewProcessor(5*time.Second, nil, nil)
	reg := aggregate.NewRegistry()
	collector := metrics.NewCollector()
	out := make(chan events.Event, 10)

	r := New(proc, reg, collector, out, Hooks{})

	merged := make(chan events.Event, 1)
	merged <- events.New(events.SourceLog, events.TypeRaw, map[string]any{"level": "INFO"}, nil)
	close(merged)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Run(ctx, merged)

	select {
	case agg := <-out:
		if agg.Source != events.SourceLog {
			t.Fatalf("expected a log aggregate from the flushed batch, got %s", agg.Source)
		}
	default:
		t.Fatal("expected flush to emit the pending batch as an aggregate")
	}
}

func TestRunnerOnEventHookCalledPerEvent(t *testing.T) {
	proc := window.NewProcessor(5*time.Second, nil, nil)
	reg := aggregate.NewRegistry()
	collector := metrics.NewCollector()

	var seen int
	hooks := Hooks{OnEvent: func(events.Event) { seen++ }}
	r := New(proc, reg, collector, nil, hooks)

	merged := make(chan events.Event, 2)
	merged <- events.New(events.SourceLog, events.TypeRaw, map[string]any{"level": "INFO"}, nil)
	merged <- events.New(events.SourceLog, events.TypeRaw, map[string]any{"level": "WARNING"}, nil)
	close(merged)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Run(ctx, merged)

	if seen != 2 {
		t.Fatalf("expected OnEvent called twice, got %d", seen)
	}
}
