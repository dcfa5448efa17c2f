// Package aggregate reduces one closed window batch per source into a
// single aggregated event, via an open capability map so new sources can
// register a reducer without touching the window processor.
package aggregate

import (
	"github.com/fluxline/pulsecore/internal/events"
	"github.com/fluxline/pulsecore/internal/window"
)

// Reducer turns a source's slice of held events from one batch into the
// payload of a single aggregated event.
type Reducer func(batch window.Batch, bySource []events.Event) map[string]any

// Registry is the open source → reducer capability map.
type Registry struct {
	reducers map[events.Source]Reducer
}

// NewRegistry returns a Registry pre-populated with the sensor, log, and
// feed reducers.
func NewRegistry() *Registry {
	r := &Registry{reducers: make(map[events.Source]Reducer)}
	r.Register(events.SourceSensor, reduceSensor)
	r.Register(events.SourceLog, reduceLog)
	r.Register(events.SourceFeed, reduceFeed)
	return r
}

// Register attaches or replaces the reducer for a source.
func (r *Registry) Register(source events.Source, reducer Reducer) {
	r.reducers[source] = reducer
}

// Aggregate partitions batch by source and applies each source's reducer,
// producing one aggregated event per source present in the batch. Sources
// with no registered reducer are skipped.
func (r *Registry) Aggregate(batch window.Batch) []events.Event {
	bySource := make(map[events.Source][]events.Event)
	order := make([]events.Source, 0, 4)
	for _, e := range batch.Events {
		if _, seen := bySource[e.Source]; !seen {
			order = append(order, e.Source)
		}
		bySource[e.Source] = append(bySource[e.Source], e)
	}

	meta := events.WindowMetadata{Start: batch.Start, End: batch.End}

	out := make([]events.Event, 0, len(order))
	for _, src := range order {
		reducer, ok := r.reducers[src]
		if !ok {
			continue
		}
		group := bySource[src]
		payload := reducer(batch, group)
		meta.Count = len(group)
		payload["window"] = meta.ToPayload()

		out = append(out, events.New(src, events.TypeAggregated, payload, nil))
	}
	return out
}

func reduceSensor(_ window.Batch, group []events.Event) map[string]any {
	var sum float64
	var n int
	for _, e := range group {
		if v, ok := e.PayloadFloat("value"); ok {
			sum += v
			n++
		}
	}

	var value any
	if n > 0 {
		value = sum / float64(n)
	}

	return map[string]any{
		"aggregation": "avg",
		"metric":      "sensor.value",
		"value":       value,
	}
}

func reduceLog(_ window.Batch, group []events.Event) map[string]any {
	levels := make(map[string]int)
	for _, e := range group {
		level := e.PayloadString("level", "UNKNOWN")
		levels[level]++
	}
	return map[string]any{
		"aggregation": "count_by_level",
		"levels":      levels,
	}
}

func reduceFeed(_ window.Batch, group []events.Event) map[string]any {
	actions := make(map[string]int)
	successes := 0
	for _, e := range group {
		action := e.PayloadString("action", "UNKNOWN")
		actions[action]++
		if ok, present := e.PayloadBool("success"); present && ok {
			successes++
		}
	}

	var successRate float64
	if len(group) > 0 {
		successRate = float64(successes) / float64(len(group))
	}

	return map[string]any{
		"aggregation":  "count_by_action",
		"actions":      actions,
		"success_rate": successRate,
	}
}
