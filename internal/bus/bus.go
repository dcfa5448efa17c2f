// Package bus implements the bounded event queues that sit between source
// producers and the pipeline consumer, following the same non-blocking
// select/default drop pattern the rest of the stack uses for its buffered
// channels.
package bus

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/metrics"
	"github.com/fluxline/pulsecore/internal/tracing"
)

// Policy controls what a Bus does when a queue is full at publish time.
type Policy string

const (
	// PolicyDrop discards the event and reports it as dropped. This is the
	// default policy for high-rate sources like sensor readings.
	PolicyDrop Policy = "drop"
	// PolicyBlock waits for room in the queue, applying backpressure to the
	// publisher. Useful for sources where losing an event is unacceptable.
	PolicyBlock Policy = "block"
)

// Bus fans every published event into both a per-source queue and a merged
// queue that the pipeline consumes from. A publish succeeds when the merged
// queue accepts the event; under PolicyDrop, a full queue at either stage
// drops the event from that queue (and counts a drop) rather than blocking
// the publisher.
type Bus struct {
	policy   Policy
	capacity int

	mu        sync.RWMutex
	perSource map[events.Source]chan events.Event
	merged    chan events.Event

	collector *metrics.Collector
}

// Config configures a new Bus.
type Config struct {
	Capacity  int
	Policy    Policy
	Collector *metrics.Collector
}

// New constructs a Bus with independent per-source queues for the given
// sources plus one merged queue, all sized to Capacity.
func New(cfg Config, sources []events.Source) *Bus {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyDrop
	}
	if cfg.Collector == nil {
		cfg.Collector = metrics.NewCollector()
	}

	b := &Bus{
		policy:    cfg.Policy,
		capacity:  cfg.Capacity,
		perSource: make(map[events.Source]chan events.Event, len(sources)),
		merged:    make(chan events.Event, cfg.Capacity),
		collector: cfg.Collector,
	}
	for _, s := range sources {
		b.perSource[s] = make(chan events.Event, cfg.Capacity)
	}
	return b
}

// Publish attempts to enqueue e onto its source queue (if per-source queues
// are enabled for this source) and the merged queue. Publish returns true
// iff the merged-queue enqueue succeeded; a source-queue drop alone does
// not fail Publish from the consumer's standpoint, but it is still counted
// toward dropped_total.
func (b *Bus) Publish(e events.Event) bool {
	_, span := tracing.GetTracer("bus").Start(context.Background(), "bus.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.source", string(e.Source)),
		attribute.String("event.id", e.ID),
	)

	b.mu.RLock()
	src, ok := b.perSource[e.Source]
	b.mu.RUnlock()
	if !ok {
		src = nil
	}

	sourceDropped := false
	mergedAccepted := true

	switch b.policy {
	case PolicyBlock:
		if src != nil {
			src <- e
		}
		b.merged <- e
	default:
		if src != nil {
			select {
			case src <- e:
			default:
				sourceDropped = true
			}
		}
		select {
		case b.merged <- e:
		default:
			mergedAccepted = false
		}
	}

	dropped := sourceDropped || !mergedAccepted
	span.SetAttributes(attribute.Bool("event.dropped", dropped))
	b.collector.RecordIngest(e.Source, dropped, b.QueueSizes())
	return mergedAccepted
}

// Merged returns the read side of the merged queue the pipeline consumes.
func (b *Bus) Merged() <-chan events.Event {
	return b.merged
}

// Source returns the read side of one source's queue, or nil if the source
// was not registered with this bus.
func (b *Bus) Source(s events.Source) <-chan events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ch, ok := b.perSource[s]
	if !ok {
		return nil
	}
	return ch
}

// QueueSizes reports the current depth of every queue, keyed by source name
// plus a "merged" entry.
func (b *Bus) QueueSizes() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sizes := make(map[string]int, len(b.perSource)+1)
	for src, ch := range b.perSource {
		sizes[string(src)] = len(ch)
	}
	sizes["merged"] = len(b.merged)
	return sizes
}

// Capacity returns the configured per-queue capacity.
func (b *Bus) Capacity() int {
	return b.capacity
}
