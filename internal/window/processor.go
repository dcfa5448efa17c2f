// Package window implements the tumbling, grid-aligned window processor
// that buckets events by event timestamp (not arrival time) and emits a
// closed batch on every window transition.
package window

import (
	"time"

	"github.com/fluxline/pulsecore/internal/events"
)

// Predicate filters events before they enter a window; returning false
// rejects the event entirely.
type Predicate func(events.Event) bool

// Mapper transforms an event before it is bucketed. Mappers run in order.
type Mapper func(events.Event) events.Event

// Batch is a closed, grid-aligned window of held events.
type Batch struct {
	Start  time.Time
	End    time.Time
	Events []events.Event
}

// Processor buckets events into fixed-width tumbling windows aligned to
// the UTC epoch, so any two processors configured with the same window
// size agree on bucket boundaries regardless of when they started.
type Processor struct {
	size       time.Duration
	predicates []Predicate
	mappers    []Mapper

	open    bool
	start   time.Time
	pending []events.Event
}

// NewProcessor returns a Processor bucketing into windows of size.
func NewProcessor(size time.Duration, predicates []Predicate, mappers []Mapper) *Processor {
	return &Processor{
		size:       size,
		predicates: predicates,
		mappers:    mappers,
	}
}

// floorToWindow floors t's UTC epoch time to the nearest multiple of
// size, aligning to the grid rather than to the processor's own start time.
// A non-positive size is treated as one second.
func floorToWindow(t time.Time, size time.Duration) time.Time {
	sz := int64(size)
	if sz <= 0 {
		sz = int64(time.Second)
	}
	epochNs := t.UTC().UnixNano()
	return time.Unix(0, (epochNs/sz)*sz).UTC()
}

// Push applies the predicate chain, then the mapper chain, buckets the
// surviving event by its grid-aligned window, and returns the just-closed
// batch if this push caused a window transition.
func (p *Processor) Push(e events.Event) (Batch, bool) {
	for _, pred := range p.predicates {
		if !pred(e) {
			return Batch{}, false
		}
	}
	for _, m := range p.mappers {
		e = m(e)
	}

	ws := floorToWindow(e.Timestamp, p.size)

	if !p.open {
		p.open = true
		p.start = ws
		p.pending = []events.Event{e}
		return Batch{}, false
	}

	if ws.Equal(p.start) {
		p.pending = append(p.pending, e)
		return Batch{}, false
	}

	// ws != current_start: close the current window (whether ws is ahead
	// of or behind current_start — a late arrival with ws < current_start
	// is documented as allowed to reopen a new window here) and start a
	// fresh one holding e.
	batch := Batch{
		Start:  p.start,
		End:    p.start.Add(p.size),
		Events: p.pending,
	}
	p.start = ws
	p.pending = []events.Event{e}
	return batch, true
}

// Flush emits the currently open window, if any, and clears processor
// state. Calling Flush with no open window returns ok=false.
func (p *Processor) Flush() (Batch, bool) {
	if !p.open || len(p.pending) == 0 {
		p.open = false
		p.pending = nil
		return Batch{}, false
	}
	batch := Batch{
		Start:  p.start,
		End:    p.start.Add(p.size),
		Events: p.pending,
	}
	p.open = false
	p.pending = nil
	return batch, true
}
