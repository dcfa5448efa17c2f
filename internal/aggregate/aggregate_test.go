package aggregate

import (
	"testing"
	"time"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/window"
)

func TestPerSourceAggregatesOneBatch(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Second)

	sensor := events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 10.0}, nil)
	log := events.New(events.SourceLog, events.TypeRaw, map[string]any{"level": "INFO"}, nil)
	feed := events.New(events.SourceFeed, events.TypeRaw, map[string]any{"action": "login", "success": true}, nil)

	batch := window.Batch{Start: start, End: end, Events: []events.Event{sensor, log, feed}}

	r := NewRegistry()
	out := r.Aggregate(batch)

	if len(out) != 3 {
		t.Fatalf("expected 3 aggregated events, got %d", len(out))
	}

	for _, e := range out {
		if e.EventType != events.TypeAggregated {
			t.Fatalf("expected aggregated type, got %s", e.EventType)
		}
		switch e.Source {
		case events.SourceSensor:
			if v, _ := e.PayloadFloat("value"); v != 10 {
				t.Fatalf("expected sensor.value=10, got %v", v)
			}
		case events.SourceLog:
			levels := e.Payload["levels"].(map[string]int)
			if levels["INFO"] != 1 {
				t.Fatalf("expected log.levels.INFO=1, got %v", levels)
			}
		case events.SourceFeed:
			rate := e.Payload["success_rate"].(float64)
			if rate != 1.0 {
				t.Fatalf("expected feed.success_rate=1.0, got %v", rate)
			}
		}
	}
}

func TestSensorAggregateNullWhenAllValuesMissing(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := events.New(events.SourceSensor, events.TypeRaw, map[string]any{}, nil)
	batch := window.Batch{Start: start, End: start.Add(time.Second), Events: []events.Event{e}}

	r := NewRegistry()
	out := r.Aggregate(batch)

	if len(out) != 1 {
		t.Fatalf("expected 1 aggregated event, got %d", len(out))
	}
	if out[0].Payload["value"] != nil {
		t.Fatalf("expected nil value when all sensor values missing, got %v", out[0].Payload["value"])
	}
}

func TestLogMissingLevelCountsAsUnknown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := events.New(events.SourceLog, events.TypeRaw, map[string]any{}, nil)
	batch := window.Batch{Start: start, End: start.Add(time.Second), Events: []events.Event{e}}

	out := NewRegistry().Aggregate(batch)
	levels := out[0].Payload["levels"].(map[string]int)
	if levels["UNKNOWN"] != 1 {
		t.Fatalf("expected UNKNOWN bucket for missing level, got %v", levels)
	}
}

func TestWindowMetadataUsesGridAlignedBounds(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Second)
	e := events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 1.0}, nil).WithTimestamp(start.Add(3 * time.Second))
	batch := window.Batch{Start: start, End: end, Events: []events.Event{e}}

	out := NewRegistry().Aggregate(batch)
	win := out[0].Payload["window"].(map[string]any)
	if win["start"] != start.Format(time.RFC3339Nano) {
		t.Fatalf("expected window.start to be batch start, got %v", win["start"])
	}
	if win["end"] != end.Format(time.RFC3339Nano) {
		t.Fatalf("expected window.end to be batch end, got %v", win["end"])
	}
}
