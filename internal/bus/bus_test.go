package bus

import (
	"testing"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
)

func TestDropOnFullMergedCapacityOne(t *testing.T) {
	b := New(Config{Capacity: 1, Policy: PolicyDrop}, nil)

	e1 := events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 1.0}, nil)
	e2 := events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 2.0}, nil)

	if ok := b.Publish(e1); !ok {
		t.Fatal("expected first publish to succeed")
	}
	if ok := b.Publish(e2); ok {
		t.Fatal("expected second publish to be dropped")
	}

	snap := b.collector.Snapshot()
	if snap.DroppedTotal != 1 {
		t.Fatalf("expected dropped_total 1, got %d", snap.DroppedTotal)
	}
}

func TestNPublishesWithCapacityCDropsNMinusC(t *testing.T) {
	const capacity = 5
	const n = 20

	b := New(Config{Capacity: capacity, Policy: PolicyDrop}, []events.Source{events.SourceLog})

	accepted := 0
	for i := 0; i < n; i++ {
		e := events.New(events.SourceLog, events.TypeRaw, map[string]any{"level": "INFO"}, nil)
		if b.Publish(e) {
			accepted++
		}
	}

	if accepted != capacity {
		t.Fatalf("expected %d accepted publishes with no consumer, got %d", capacity, accepted)
	}

	snap := b.collector.Snapshot()
	if snap.DroppedTotal != int64(n-capacity) {
		t.Fatalf("expected %d drops, got %d", n-capacity, snap.DroppedTotal)
	}
}

func TestSourceDropDoesNotFailPublishWhenMergedAccepts(t *testing.T) {
	// merged capacity large, per-source capacity exhausted first: publish
	// should still report true while counting a drop.
	b := &Bus{
		policy:    PolicyDrop,
		capacity:  1,
		perSource: map[events.Source]chan events.Event{events.SourceFeed: make(chan events.Event, 1)},
		merged:    make(chan events.Event, 10),
		collector: metrics.NewCollector(),
	}

	e1 := events.New(events.SourceFeed, events.TypeRaw, map[string]any{"action": "login"}, nil)
	e2 := events.New(events.SourceFeed, events.TypeRaw, map[string]any{"action": "logout"}, nil)

	if !b.Publish(e1) {
		t.Fatal("expected first publish to succeed")
	}
	if !b.Publish(e2) {
		t.Fatal("expected second publish to still report true: merged queue accepted it")
	}

	snap := b.collector.Snapshot()
	if snap.DroppedTotal != 1 {
		t.Fatalf("expected the source-queue drop to be counted, got %d", snap.DroppedTotal)
	}
}

func TestQueueSizesKeyedBySourceAndMerged(t *testing.T) {
	b := New(Config{Capacity: 4, Policy: PolicyDrop}, []events.Source{events.SourceSensor})
	b.Publish(events.New(events.SourceSensor, events.TypeRaw, map[string]any{"value": 1.0}, nil))

	sizes := b.QueueSizes()
	if _, ok := sizes["merged"]; !ok {
		t.Fatal("expected a merged key in queue sizes")
	}
	if sizes[string(events.SourceSensor)] != 1 {
		t.Fatalf("expected sensor queue depth 1, got %d", sizes[string(events.SourceSensor)])
	}
}
